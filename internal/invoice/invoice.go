// Package invoice holds the canonical invoice record and the steps that turn
// untrusted model output into it: deduplication, numeric sanitization,
// shape adaptation, schema validation and arithmetic consistency checks.
package invoice

// Invoice statuses
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Customer statuses
const (
	CustomerActive   = "active"
	CustomerInactive = "inactive"
)

// Metadata validation statuses
const (
	ValidationComplete = "complete"
	ValidationPartial  = "partial"
	ValidationFailed   = "failed"
)

// UnknownCustomer is the name used when a customer name is absent.
const UnknownCustomer = "UNKNOWN"

// Record is the validated result of one extraction candidate
type Record struct {
	Invoices  []Invoice  `json:"invoices" validate:"required,dive"`
	Products  []Product  `json:"products" validate:"required,dive"`
	Customers []Customer `json:"customers" validate:"required,dive"`
	Metadata  *Metadata  `json:"metadata" validate:"required"`
}

// Invoice is one recognized invoice. It exclusively owns its items.
type Invoice struct {
	ID              string          `json:"id" validate:"required"`
	SerialNumber    string          `json:"serialNumber"`
	Date            string          `json:"date"`
	CustomerID      string          `json:"customerId" validate:"required"`
	CustomerName    string          `json:"customerName"`
	CustomerCompany string          `json:"customerCompany"`
	CustomerGSTIN   string          `json:"customerGSTIN"`
	SupplierGSTIN   string          `json:"supplierGSTIN"`
	PlaceOfSupply   string          `json:"placeOfSupply"`
	Items           []LineItem      `json:"items" validate:"min=1,dive"`
	Charges         *Charges        `json:"charges,omitempty"`
	TotalItems      float64         `json:"totalItems" validate:"gte=0"`
	TotalQuantity   float64         `json:"totalQuantity" validate:"gte=0"`
	TaxableAmount   float64         `json:"taxableAmount" validate:"gte=0"`
	CGST            float64         `json:"cgst" validate:"gte=0"`
	SGST            float64         `json:"sgst" validate:"gte=0"`
	IGST            float64         `json:"igst" validate:"gte=0"`
	TotalTax        float64         `json:"totalTax" validate:"gte=0"`
	Subtotal        float64         `json:"subtotal" validate:"gte=0"`
	Discount        float64         `json:"discount" validate:"gte=0"`
	RoundOff        float64         `json:"roundOff" validate:"gte=0"`
	GrandTotal      float64         `json:"grandTotal" validate:"gte=0"`
	AmountPayable   float64         `json:"amountPayable" validate:"gte=0"`
	Status          string          `json:"status" validate:"oneof=pending paid cancelled"`
	PaymentDetails  *PaymentDetails `json:"paymentDetails,omitempty"`
}

// LineItem is one product entry within an invoice
type LineItem struct {
	ProductID    string  `json:"productId" validate:"required"`
	ProductName  string  `json:"productName" validate:"required"`
	Quantity     float64 `json:"quantity" validate:"gte=0"`
	Unit         string  `json:"unit" validate:"required"`
	UnitPrice    float64 `json:"unitPrice" validate:"gte=0"`
	TaxRate      float64 `json:"taxRate" validate:"gte=0"` // percentage
	TaxableValue float64 `json:"taxableValue" validate:"gte=0"`
	GSTAmount    float64 `json:"gstAmount" validate:"gte=0"`
	PriceWithTax float64 `json:"priceWithTax" validate:"gte=0"`
	TotalAmount  float64 `json:"totalAmount" validate:"gte=0"`
}

// Charges are the extra amounts billed on top of the items
type Charges struct {
	MakingCharges    float64 `json:"makingCharges" validate:"gte=0"`
	ShippingCharges  float64 `json:"shippingCharges" validate:"gte=0"`
	DebitCardCharges float64 `json:"debitCardCharges" validate:"gte=0"`
	OtherCharges     float64 `json:"otherCharges" validate:"gte=0"`
}

// Total returns the sum of all charges
func (c *Charges) Total() float64 {
	if c == nil {
		return 0
	}
	return c.MakingCharges + c.ShippingCharges + c.DebitCardCharges + c.OtherCharges
}

// PaymentDetails holds the bank details printed on the invoice
type PaymentDetails struct {
	Bank            string `json:"bank"`
	AccountNumber   string `json:"accountNumber"`
	IFSCCode        string `json:"ifscCode"`
	Branch          string `json:"branch"`
	BeneficiaryName string `json:"beneficiaryName"`
	UPIEnabled      bool   `json:"upiEnabled"`
}

// Product is shared across the invoices of a record; identity is its normalized name
type Product struct {
	ID           string  `json:"id" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Unit         string  `json:"unit" validate:"required"`
	UnitPrice    float64 `json:"unitPrice" validate:"gte=0"`
	TaxRate      float64 `json:"taxRate" validate:"gte=0"`
	PriceWithTax float64 `json:"priceWithTax" validate:"gte=0"`
	Discount     float64 `json:"discount" validate:"gte=0"`
	TotalSold    float64 `json:"totalSold" validate:"gte=0"`
	TotalRevenue float64 `json:"totalRevenue" validate:"gte=0"`
	Category     string  `json:"category,omitempty"`
	LastSoldDate string  `json:"lastSoldDate"`
}

// Customer is identified by name, falling back to UnknownCustomer
type Customer struct {
	ID                  string   `json:"id" validate:"required"`
	Name                string   `json:"name" validate:"required"`
	Company             string   `json:"company"`
	GSTIN               string   `json:"gstin"`
	Phone               string   `json:"phone"`
	Email               string   `json:"email"`
	TotalPurchaseAmount float64  `json:"totalPurchaseAmount" validate:"gte=0"`
	TotalInvoices       float64  `json:"totalInvoices" validate:"gte=0"`
	PurchaseDate        string   `json:"purchaseDate"`
	Status              string   `json:"status" validate:"oneof=active inactive"`
	ValidationErrors    []string `json:"validationErrors"`
}

// Metadata describes one extraction
type Metadata struct {
	TotalInvoices    float64  `json:"totalInvoices" validate:"gte=0"`
	TotalProducts    float64  `json:"totalProducts" validate:"gte=0"`
	TotalCustomers   float64  `json:"totalCustomers" validate:"gte=0"`
	TotalRevenue     float64  `json:"totalRevenue" validate:"gte=0"`
	TotalTax         float64  `json:"totalTax" validate:"gte=0"`
	ExtractionDate   string   `json:"extractionDate" validate:"required"`
	SourceFile       string   `json:"sourceFile"`
	ValidationStatus string   `json:"validationStatus" validate:"oneof=complete partial failed"`
	MissingFields    []string `json:"missingFields"`
	Warnings         []string `json:"warnings"`
}

// applyDefaults fills the optional list fields so consumers never see nil
func (r *Record) applyDefaults() {
	for i := range r.Customers {
		if r.Customers[i].ValidationErrors == nil {
			r.Customers[i].ValidationErrors = []string{}
		}
	}
	if r.Metadata != nil {
		if r.Metadata.MissingFields == nil {
			r.Metadata.MissingFields = []string{}
		}
		if r.Metadata.Warnings == nil {
			r.Metadata.Warnings = []string{}
		}
	}
}
