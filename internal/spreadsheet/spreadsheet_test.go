package spreadsheet

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("IsSpreadsheet", func() {
	It("should accept a real workbook", func() {
		data := workbook(map[string][][]any{"Sales": {{"Invoice No"}, {"A1"}}}, "Sales")
		Expect(IsSpreadsheet(data)).To(BeTrue())
	})

	It("should reject a zip signature that is not a workbook", func() {
		Expect(IsSpreadsheet([]byte{0x50, 0x4B, 0x03, 0x04, 0x00, 0x01})).To(BeFalse())
	})

	It("should reject data without a workbook signature", func() {
		Expect(IsSpreadsheet([]byte("%PDF-1.7"))).To(BeFalse())
	})

	It("should reject short data", func() {
		Expect(IsSpreadsheet([]byte{0x50})).To(BeFalse())
	})
})

var _ = Describe("HasSignature", func() {
	DescribeTable("checking the first four bytes",
		func(data []byte, expected bool) {
			Expect(HasSignature(data)).To(Equal(expected))
		},
		Entry("zip container", []byte{0x50, 0x4B, 0x03, 0x04, 0xFF}, true),
		Entry("compound file", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1}, true),
		Entry("png", []byte{0x89, 0x50, 0x4E, 0x47}, false),
		Entry("empty", []byte{}, false),
	)
})

var _ = Describe("IsMIMEType", func() {
	It("should recognize xlsx and xls", func() {
		Expect(IsMIMEType(MIMETypeXLSX)).To(BeTrue())
		Expect(IsMIMEType("Application/Vnd.MS-Excel; charset=binary")).To(BeTrue())
	})

	It("should reject other types", func() {
		Expect(IsMIMEType("text/csv")).To(BeFalse())
	})
})

var _ = Describe("ReadRows", func() {
	var (
		data []byte
		rows []Row
		err  error
	)

	JustBeforeEach(func() {
		rows, err = ReadRows(data)
	})

	When("the first sheet has a header and data", func() {
		BeforeEach(func() {
			data = workbook(map[string][][]any{
				"Sales": {
					{"Invoice No", "Product Name", "Quantity"},
					{"A1", "Pen", 2},
					{"A1", "Ink"},
				},
				"Other": {{"Ignored"}, {"x"}},
			}, "Sales", "Other")
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should key cells by header", func() {
			Expect(rows).To(HaveLen(2))
			Expect(rows[0]).To(Equal(Row{"Invoice No": "A1", "Product Name": "Pen", "Quantity": "2"}))
		})

		It("should default missing cells to empty strings", func() {
			Expect(rows[1]["Quantity"]).To(Equal(""))
		})
	})

	When("the data is not a workbook", func() {
		BeforeEach(func() {
			data = []byte("not a workbook")
		})

		It("should return an error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("ReadSheets", func() {
	var (
		sheets []Sheet
		err    error
	)

	BeforeEach(func() {
		data := workbook(map[string][][]any{
			"Sales": {
				{"Invoice No", "", " Amount "},
				{"A1", "dropped", 10},
				{nil, nil, nil},
				{"A2"},
			},
			"Empty": {},
		}, "Sales", "Empty")
		sheets, err = ReadSheets(data)
	})

	It("should read every sheet in order", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(sheets).To(HaveLen(2))
		Expect(sheets[0].Name).To(Equal("Sales"))
		Expect(sheets[1].Name).To(Equal("Empty"))
		Expect(sheets[1].Rows).To(BeEmpty())
	})

	It("should drop blank headers and blank rows", func() {
		Expect(sheets[0].Rows).To(HaveLen(2))
		Expect(sheets[0].Rows[0]).To(Equal(Row{"Invoice No": "A1", "Amount": "10"}))
	})

	It("should set missing cells to nil", func() {
		Expect(sheets[0].Rows[1]).To(HaveKeyWithValue("Amount", BeNil()))
	})
})
