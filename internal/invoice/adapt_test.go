package invoice

import (
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Canonicalize", func() {
	var (
		candidate map[string]any
		opts      AdaptOptions
		result    map[string]any
		counter   int
	)

	BeforeEach(func() {
		counter = 0
		opts = AdaptOptions{
			NewID: func() string {
				counter++
				return fmt.Sprintf("id-%d", counter)
			},
			Now:        time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
			SourceFile: "sales.xlsx",
		}
	})

	JustBeforeEach(func() {
		result = Canonicalize(candidate, opts)
	})

	When("the candidate is flat", func() {
		BeforeEach(func() {
			candidate = map[string]any{
				"invoice": map[string]any{
					"serialNumber": "A1",
					"customerName": "Acme Traders",
					"quantity":     5.0,
					"tax":          36.0,
					"totalAmount":  250.0,
					"date":         "2024-03-01",
				},
				"products": []any{
					map[string]any{"name": "Pen", "quantity": 2.0, "unitPrice": 50.0, "tax": 0.0, "totalAmount": 100.0},
					map[string]any{"name": "pen", "quantity": 3.0, "unitPrice": 40.0, "tax": 36.0, "totalAmount": 150.0},
				},
				"customer": map[string]any{"name": "Acme Traders", "totalPurchaseAmount": 250.0},
			}
		})

		It("should build one nested invoice", func() {
			Expect(result["invoices"]).To(HaveLen(1))
			inv := firstInvoice(result)
			Expect(inv["serialNumber"]).To(Equal("A1"))
			Expect(inv["status"]).To(Equal(StatusPending))
			Expect(inv["grandTotal"]).To(Equal(250.0))
			Expect(inv["totalQuantity"]).To(Equal(5.0))
		})

		It("should split the tax between cgst and sgst", func() {
			inv := firstInvoice(result)
			Expect(inv["cgst"]).To(Equal(18.0))
			Expect(inv["sgst"]).To(Equal(18.0))
			Expect(inv["totalTax"]).To(Equal(36.0))
		})

		It("should derive line items", func() {
			items := firstInvoice(result)["items"].([]any)
			Expect(items).To(HaveLen(2))
			second := items[1].(map[string]any)
			Expect(second["taxableValue"]).To(Equal(120.0))
			Expect(second["priceWithTax"]).To(Equal(50.0))
			Expect(second["taxRate"]).To(Equal(30.0))
			Expect(second["unit"]).To(Equal(DefaultUnit))
		})

		It("should share a product id between names that normalize alike", func() {
			items := firstInvoice(result)["items"].([]any)
			Expect(items[0].(map[string]any)["productId"]).To(Equal(items[1].(map[string]any)["productId"]))
		})

		It("should link the customer", func() {
			customer := result["customers"].([]any)[0].(map[string]any)
			Expect(customer["id"]).To(Equal(firstInvoice(result)["customerId"]))
			Expect(customer["totalPurchaseAmount"]).To(Equal(250.0))
		})

		It("should describe the extraction", func() {
			meta := result["metadata"].(map[string]any)
			Expect(meta["sourceFile"]).To(Equal("sales.xlsx"))
			Expect(meta["extractionDate"]).To(Equal("2024-03-02T10:00:00Z"))
			Expect(meta["validationStatus"]).To(Equal(ValidationComplete))
			Expect(meta["totalProducts"]).To(Equal(1.0))
		})

		It("should produce a record that validates after dedup and sanitize", func() {
			products, err := NormalizeProducts(result["products"].([]any))
			Expect(err).NotTo(HaveOccurred())
			result["products"] = products
			sanitized, err := Sanitize(result)
			Expect(err).NotTo(HaveOccurred())
			rec, err := Validate(sanitized)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Products).To(HaveLen(1))
			Expect(rec.Products[0].TotalSold).To(Equal(5.0))
		})

		When("the customer name is missing", func() {
			BeforeEach(func() {
				candidate["customer"] = map[string]any{}
				delete(candidate["invoice"].(map[string]any), "customerName")
			})

			It("should fall back to the unknown customer", func() {
				customer := result["customers"].([]any)[0].(map[string]any)
				Expect(customer["name"]).To(Equal(UnknownCustomer))
				Expect(customer["validationErrors"]).To(Equal([]string{"name"}))
			})

			It("should mark the extraction partial", func() {
				meta := result["metadata"].(map[string]any)
				Expect(meta["validationStatus"]).To(Equal(ValidationPartial))
				Expect(meta["missingFields"]).To(ContainElement("customer.name"))
			})
		})

		When("there are no products", func() {
			BeforeEach(func() {
				candidate["products"] = []any{}
			})

			It("should fail validation on the items field", func() {
				sanitized, err := Sanitize(result)
				Expect(err).NotTo(HaveOccurred())
				_, err = Validate(sanitized)
				Expect(err).To(MatchError(ErrSchemaViolation))
				Expect(err.(*SchemaViolationError).Fields()).To(ContainElement("invoices[0].items"))
			})
		})
	})

	When("the candidate is nested", func() {
		BeforeEach(func() {
			candidate = validCandidate()
		})

		It("should keep the invoices as they are", func() {
			Expect(result["invoices"]).To(Equal(candidate["invoices"]))
		})

		It("should keep a stated extraction date", func() {
			Expect(result["metadata"].(map[string]any)["extractionDate"]).To(Equal("2024-03-02T10:00:00Z"))
		})

		When("metadata is missing", func() {
			BeforeEach(func() {
				delete(candidate, "metadata")
			})

			It("should add metadata for the extraction", func() {
				meta := result["metadata"].(map[string]any)
				Expect(meta["totalInvoices"]).To(Equal(1.0))
				Expect(meta["sourceFile"]).To(Equal("sales.xlsx"))
				Expect(meta["validationStatus"]).To(Equal(ValidationComplete))
			})
		})
	})
})
