package scanning

// DefaultPrompt asks for the nested invoice record. The document, or the
// document text, follows it.
const DefaultPrompt = `You extract structured data from invoices. The input may be a scanned image, a PDF, spreadsheet rows or plain text.

Reply with one JSON object and nothing else: no explanations and no markdown.

The object must have this shape:

{
  "invoices": [{
    "id": "unique invoice id",
    "serialNumber": "invoice number printed on the document",
    "date": "YYYY-MM-DD",
    "customerId": "id of the matching entry in customers",
    "customerName": "", "customerCompany": "", "customerGSTIN": "", "supplierGSTIN": "", "placeOfSupply": "",
    "items": [{
      "productId": "id of the matching entry in products",
      "productName": "",
      "quantity": 0,
      "unit": "PCS, CASE, KG, SQF ...",
      "unitPrice": 0,
      "taxRate": 0,
      "taxableValue": 0,
      "gstAmount": 0,
      "priceWithTax": 0,
      "totalAmount": 0
    }],
    "charges": {"makingCharges": 0, "shippingCharges": 0, "debitCardCharges": 0, "otherCharges": 0},
    "totalItems": 0, "totalQuantity": 0, "taxableAmount": 0,
    "cgst": 0, "sgst": 0, "igst": 0, "totalTax": 0,
    "subtotal": 0, "discount": 0, "roundOff": 0, "grandTotal": 0, "amountPayable": 0,
    "status": "pending | paid | cancelled",
    "paymentDetails": {"bank": "", "accountNumber": "", "ifscCode": "", "branch": "", "beneficiaryName": "", "upiEnabled": false}
  }],
  "products": [{
    "id": "", "name": "", "unit": "", "unitPrice": 0, "taxRate": 0, "priceWithTax": 0,
    "discount": 0, "totalSold": 0, "totalRevenue": 0, "category": "", "lastSoldDate": "YYYY-MM-DD"
  }],
  "customers": [{
    "id": "", "name": "", "company": "", "gstin": "", "phone": "", "email": "",
    "totalPurchaseAmount": 0, "totalInvoices": 0, "purchaseDate": "YYYY-MM-DD",
    "status": "active | inactive", "validationErrors": ["names of missing fields"]
  }],
  "metadata": {
    "totalInvoices": 0, "totalProducts": 0, "totalCustomers": 0, "totalRevenue": 0, "totalTax": 0,
    "extractionDate": "ISO 8601 timestamp", "sourceFile": "",
    "validationStatus": "complete | partial | failed",
    "missingFields": [], "warnings": []
  }
}

Rules:
- Rows or pages that share an invoice number belong to ONE invoice.
- Products and customers are matched by name ignoring case and surrounding spaces; list each once.
- Use "" for missing text and 0 for missing numbers, and list missing field names in validationErrors and metadata.missingFields.
- Amounts are plain numbers without currency symbols or thousands separators.
- taxableValue = quantity x unitPrice
- gstAmount = taxableValue x taxRate / 100
- priceWithTax = unitPrice x (1 + taxRate / 100)
- totalAmount = quantity x priceWithTax
- totalTax = cgst + sgst + igst. When only a total GST is printed, split it equally into cgst and sgst for intra-state supply, or put it in igst for inter-state supply.
- Status comes from words such as PAID, PENDING, DUE or CANCELLED; default to pending.
- All dates are YYYY-MM-DD.

Invoice input:
`
