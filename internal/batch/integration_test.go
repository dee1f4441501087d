package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/xuri/excelize/v2"

	"github.com/zombor/invoice-extractor/internal/aggregate"
	"github.com/zombor/invoice-extractor/internal/extraction"
	"github.com/zombor/invoice-extractor/internal/invoice"
	"github.com/zombor/invoice-extractor/internal/scanning"
)

// stubScanner replies with a fixed model answer
type stubScanner struct {
	mu       sync.Mutex
	reply    string
	requests []scanning.Request
}

func (s *stubScanner) Scan(ctx context.Context, req scanning.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.reply, nil
}

func (s *stubScanner) Close() error {
	return nil
}

const modelReply = "```json\n" + `{
  "invoices": [{
    "id": "inv-1", "serialNumber": "INV-7", "date": "2024-03-01",
    "customerId": "cust-1", "customerName": "Bala Stores",
    "items": [{
      "productId": "p-1", "productName": "Rice", "quantity": "10", "unit": "KG",
      "unitPrice": 50, "taxRate": 5, "taxableValue": 500, "gstAmount": 25,
      "priceWithTax": 52.5, "totalAmount": 525
    }],
    "totalItems": 1, "totalQuantity": 10, "taxableAmount": 500,
    "cgst": 12.5, "sgst": 12.5, "igst": 0, "totalTax": 25,
    "subtotal": 500, "discount": 0, "roundOff": 0,
    "grandTotal": "525", "amountPayable": 525, "status": "paid"
  }],
  "products": [
    {"id": "p-1", "name": "Rice", "unit": "KG", "unitPrice": 50, "taxRate": 5, "priceWithTax": 52.5,
     "discount": 0, "totalSold": 6, "totalRevenue": 315, "lastSoldDate": "2024-03-01"},
    {"id": "p-1", "name": " rice", "unit": "KG", "unitPrice": 50, "taxRate": 5, "priceWithTax": 52.5,
     "discount": 0, "totalSold": 4, "totalRevenue": 210, "lastSoldDate": "2024-03-01"}
  ],
  "customers": [{"id": "cust-1", "name": "Bala Stores", "phone": "98400", "email": "",
    "totalPurchaseAmount": 525, "totalInvoices": 1, "purchaseDate": "2024-03-01", "status": "active"}]
}` + "\n```"

func salesWorkbook() []byte {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"Invoice No", "Product Name", "Qty", "Price", "Tax", "Total Amount", "Customer Name", "Date"},
		{"A1", "Pen", 2, 100, 36, 236, "Acme", "2024-03-01"},
		{"A1", "Pen", 3, 100, 54, 354, "Acme", "2024-03-01"},
		{"A2", "Notebook", 1, 50, 0, 50, "Acme", "2024-03-04"},
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		Expect(err).NotTo(HaveOccurred())
		values := row
		Expect(f.SetSheetRow("Sheet1", cell, &values)).To(Succeed())
	}
	buf, err := f.WriteToBuffer()
	Expect(err).NotTo(HaveOccurred())
	return buf.Bytes()
}

var _ = Describe("Integration", func() {
	var (
		db       *BoltDB
		store    *LocalStorage
		scanner  *stubScanner
		ghServer *ghttp.Server
	)

	upload := func(filename string, data []byte) *http.Response {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		req, err := http.NewRequest(http.MethodPost, ghServer.URL()+"/api/extract", body)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	readBatch := func(resp *http.Response) *Batch {
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		var batch Batch
		Expect(json.Unmarshal(raw, &batch)).To(Succeed())
		return &batch
	}

	BeforeEach(func() {
		tempDir := GinkgoT().TempDir()

		var err error
		db, err = NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)

		store, err = NewLocalStorage(filepath.Join(tempDir, "files"))
		Expect(err).NotTo(HaveOccurred())

		scanner = &stubScanner{reply: modelReply}
		opts := extraction.DefaultOptions()
		opts.RetryDelay = time.Millisecond
		orchestrator := extraction.New(scanner, opts)

		server := NewServer(NewService(db, orchestrator, store), BasicAuth{})
		ghServer = ghttp.NewServer()
		ghServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP, server.ServeHTTP, server.ServeHTTP)
		DeferCleanup(ghServer.Close)
	})

	It("should extract an image, sanitize the reply and archive the batch", func() {
		png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
		resp := upload("bill.png", png)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		batch := readBatch(resp)

		Expect(scanner.requests).To(HaveLen(1))
		Expect(scanner.requests[0].MIMEType).To(Equal("image/png"))
		Expect(scanner.requests[0].Prompt).To(Equal(scanning.DefaultPrompt))

		Expect(batch.Strategy).To(Equal(extraction.StrategyInline))
		Expect(batch.Outcomes).To(HaveLen(1))
		record := batch.Outcomes[0].Record
		Expect(record).NotTo(BeNil())
		Expect(record.Invoices[0].GrandTotal).To(Equal(525.0))
		Expect(record.Invoices[0].Items[0].Quantity).To(Equal(10.0))
		Expect(record.Products).To(HaveLen(1))
		Expect(record.Products[0].TotalSold).To(Equal(10.0))

		stored, err := db.GetBatch(batch.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Metadata.ValidationStatus).To(Equal(invoice.ValidationComplete))
		Expect(store.Get(stored.Filename)).To(Equal(png))
	})

	It("should build invoices from spreadsheet rows without calling the model", func() {
		resp := upload("sales.xlsx", salesWorkbook())
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		batch := readBatch(resp)

		Expect(scanner.requests).To(BeEmpty())
		Expect(batch.Strategy).To(Equal(extraction.StrategySpreadsheetRows))
		Expect(batch.Outcomes).To(HaveLen(2))

		tablesResp, err := http.Get(ghServer.URL() + "/api/batches/" + batch.ID + "/tables")
		Expect(err).NotTo(HaveOccurred())
		defer tablesResp.Body.Close()
		var tables aggregate.Tables
		Expect(json.NewDecoder(tablesResp.Body).Decode(&tables)).To(Succeed())

		Expect(tables.InvoicesTable).To(HaveLen(2))
		Expect(tables.InvoicesTable[0].InvoiceID).To(Equal("A1"))
		Expect(tables.InvoicesTable[0].TotalAmount).To(Equal(590.0))
		Expect(tables.CustomersTable).To(HaveLen(1))
		Expect(tables.CustomersTable[0].Invoices).To(Equal(2))
		Expect(tables.CustomersTable[0].TotalAmount).To(Equal(640.0))
		Expect(tables.CustomersTable[0].PurchaseDate).To(Equal("2024-03-04"))
		Expect(tables.ProductsTable).To(HaveLen(2))
		Expect(tables.ProductsTable[0].ProductName).To(Equal("Pen"))
		Expect(tables.ProductsTable[0].Quantity).To(Equal(5.0))
		Expect(tables.ProductsTable[0].TotalRevenue).To(Equal(590.0))
	})

	It("should reject a legacy workbook it cannot open", func() {
		xls := []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00, 0xff}
		resp := upload("sales.xls", xls)
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnsupportedMediaType))

		var payload errorResponse
		Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
		Expect(payload.Report).NotTo(BeNil())
		Expect(payload.Report.Kind).To(Equal(extraction.KindUnrecognizedDocument))
		Expect(payload.Report.Stage).To(Equal(extraction.StageRouting))

		Expect(scanner.requests).To(BeEmpty())
		batches, err := db.ListBatches()
		Expect(err).NotTo(HaveOccurred())
		Expect(batches).To(BeEmpty())
	})

	It("should delete an archived batch", func() {
		batch := readBatch(upload("bill.png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}))

		req, err := http.NewRequest(http.MethodDelete, ghServer.URL()+"/api/batches/"+batch.ID, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

		_, err = db.GetBatch(batch.ID)
		Expect(err).To(MatchError(ErrNotFound))
		_, err = store.Get(batch.Filename)
		Expect(err).To(HaveOccurred())
	})
})
