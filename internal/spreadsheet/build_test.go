package spreadsheet

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BuildInvoiceFromRows", func() {
	var (
		rows  []Row
		built BuiltInvoice
	)

	JustBeforeEach(func() {
		built = BuildInvoiceFromRows(rows, "A1")
	})

	When("a group has two rows", func() {
		BeforeEach(func() {
			rows = []Row{
				{"Invoice No": "A1", "Customer Name": "Acme", "Product Name": "Pen", "Quantity": "2", "Unit Price": "40", "Tax": "9", "Total Amount": "100", "Date": "2024-03-01"},
				{"Invoice No": "A1", "Party Name": "Ignored", "Item Name": "Ink", "Qty": "3", "Price": "45", "GST": "15", "Total Amount": "150"},
			}
		})

		It("should sum quantities and totals", func() {
			Expect(built.Invoice.Quantity).To(Equal(5.0))
			Expect(built.Invoice.TotalAmount).To(Equal(250.0))
			Expect(built.Invoice.Tax).To(Equal(24.0))
		})

		It("should take header fields from the first row", func() {
			Expect(built.Invoice.SerialNumber).To(Equal("A1"))
			Expect(built.Invoice.CustomerName).To(Equal("Acme"))
			Expect(built.Invoice.ProductName).To(Equal("Pen"))
			Expect(built.Invoice.Date).To(Equal("2024-03-01"))
		})

		It("should resolve product aliases per row", func() {
			Expect(built.Products).To(Equal([]BuiltProduct{
				{Name: "Pen", Quantity: 2, UnitPrice: 40, Tax: 9, TotalAmount: 100},
				{Name: "Ink", Quantity: 3, UnitPrice: 45, Tax: 15, TotalAmount: 150},
			}))
		})

		It("should set the customer purchase amount to the invoice total", func() {
			Expect(built.Customer).To(Equal(BuiltCustomer{Name: "Acme", TotalPurchaseAmount: 250}))
		})
	})

	When("optional columns are absent", func() {
		BeforeEach(func() {
			rows = []Row{{"Invoice No": "A1", "Description": "Widget"}}
		})

		It("should default quantity to one and amounts to zero", func() {
			Expect(built.Products[0]).To(Equal(BuiltProduct{Name: "Widget", Quantity: 1}))
			Expect(built.Customer.Name).To(BeEmpty())
		})
	})

	When("numbers carry thousands separators", func() {
		BeforeEach(func() {
			rows = []Row{{"Invoice No": "A1", "Total Amount": "1,250.50"}}
		})

		It("should parse them", func() {
			Expect(built.Invoice.TotalAmount).To(Equal(1250.5))
		})
	})

	When("the group is empty", func() {
		BeforeEach(func() {
			rows = nil
		})

		It("should return an empty invoice", func() {
			Expect(built.Products).To(BeEmpty())
			Expect(built.Invoice.ProductName).To(BeEmpty())
		})
	})

	Describe("Flat", func() {
		BeforeEach(func() {
			rows = []Row{{"Invoice No": "A1", "Customer Name": "Acme", "Product Name": "Pen", "Quantity": "2", "Total Amount": "100"}}
		})

		It("should expose the invoice, products and customer", func() {
			flat := built.Flat()
			Expect(flat).To(HaveKey("invoice"))
			Expect(flat["invoice"]).To(HaveKeyWithValue("serialNumber", "A1"))
			Expect(flat["products"]).To(HaveLen(1))
			Expect(flat["customer"]).To(HaveKeyWithValue("name", "Acme"))
		})
	})
})
