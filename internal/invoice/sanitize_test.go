package invoice

import (
	"encoding/json"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ToNumber", func() {
	DescribeTable("coercing values",
		func(input any, expected float64) {
			Expect(ToNumber(input)).To(Equal(expected))
		},
		Entry("nil", nil, 0.0),
		Entry("finite float", 12.5, 12.5),
		Entry("negative number keeps its sign", -5, -5.0),
		Entry("NaN", math.NaN(), 0.0),
		Entry("positive infinity", math.Inf(1), 0.0),
		Entry("negative infinity", math.Inf(-1), 0.0),
		Entry("thousands separators", "1,234.50", 1234.5),
		Entry("padded string", "  42 ", 42.0),
		Entry("empty string", "", 0.0),
		Entry("garbage string", "abc", 0.0),
		Entry("infinite string", "Infinity", 0.0),
		Entry("json number", json.Number("7.25"), 7.25),
		Entry("bool", true, 0.0),
		Entry("object", map[string]any{"a": 1}, 0.0),
		Entry("list", []any{1.0}, 0.0),
	)

	It("is idempotent", func() {
		for _, input := range []any{nil, "1,234.50", "abc", -5, 3.75, math.NaN(), "  9 ", true} {
			once := ToNumber(input)
			Expect(ToNumber(once)).To(Equal(once))
			Expect(math.IsNaN(once) || math.IsInf(once, 0)).To(BeFalse())
		}
	})
})

var _ = Describe("Sanitize", func() {
	var (
		candidate map[string]any
		sanitized map[string]any
		err       error
	)

	BeforeEach(func() {
		candidate = validCandidate()
	})

	JustBeforeEach(func() {
		sanitized, err = Sanitize(candidate)
	})

	When("numeric fields are strings", func() {
		BeforeEach(func() {
			inv := firstInvoice(candidate)
			inv["cgst"] = "120"
			inv["grandTotal"] = "1,236.00"
			inv["charges"] = map[string]any{"shippingCharges": "50"}
			item := inv["items"].([]any)[0].(map[string]any)
			item["quantity"] = "2"
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should coerce invoice totals", func() {
			inv := firstInvoice(sanitized)
			Expect(inv["cgst"]).To(Equal(120.0))
			Expect(inv["grandTotal"]).To(Equal(1236.0))
		})

		It("should coerce charges", func() {
			charges := firstInvoice(sanitized)["charges"].(map[string]any)
			Expect(charges["shippingCharges"]).To(Equal(50.0))
		})

		It("should coerce line items", func() {
			item := firstInvoice(sanitized)["items"].([]any)[0].(map[string]any)
			Expect(item["quantity"]).To(Equal(2.0))
		})

		It("should leave the input untouched", func() {
			Expect(firstInvoice(candidate)["cgst"]).To(Equal("120"))
		})
	})

	When("numeric fields are missing", func() {
		BeforeEach(func() {
			delete(firstInvoice(candidate), "roundOff")
			delete(candidate["customers"].([]any)[0].(map[string]any), "totalInvoices")
		})

		It("should default them to zero", func() {
			Expect(firstInvoice(sanitized)["roundOff"]).To(Equal(0.0))
			Expect(sanitized["customers"].([]any)[0].(map[string]any)["totalInvoices"]).To(Equal(0.0))
		})
	})

	When("lists are missing", func() {
		BeforeEach(func() {
			candidate = map[string]any{}
		})

		It("should produce empty lists", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(sanitized["invoices"]).To(BeEmpty())
			Expect(sanitized["products"]).To(BeEmpty())
			Expect(sanitized["customers"]).To(BeEmpty())
		})

		It("should not invent metadata", func() {
			Expect(sanitized).NotTo(HaveKey("metadata"))
		})
	})

	When("a list has the wrong shape", func() {
		BeforeEach(func() {
			candidate["products"] = "Pen"
		})

		It("should return a schema violation", func() {
			Expect(err).To(MatchError(ErrSchemaViolation))
			var violation *SchemaViolationError
			Expect(err).To(BeAssignableToTypeOf(violation))
			Expect(err.(*SchemaViolationError).Fields()).To(ConsistOf("products"))
		})
	})

	It("is idempotent", func() {
		again, err := Sanitize(sanitized)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal(sanitized))
	})
})
