package batch

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/invoice-extractor/internal/spreadsheet"
)

const mimeOctetStream = "application/octet-stream"

var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".heic": "image/heic",
	".heif": "image/heif",
	".xlsx": spreadsheet.MIMETypeXLSX,
	".xls":  spreadsheet.MIMETypeXLS,
	".csv":  "text/csv",
	".txt":  "text/plain",
	".json": "application/json",
}

// DetectContentType decides the MIME type a document is routed by. A
// workbook signature that opens as a workbook wins over whatever was
// declared; then the declared type, the filename extension and finally
// content sniffing are tried in that order.
func DetectContentType(data []byte, declared, filename string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))

	if spreadsheet.IsSpreadsheet(data) {
		if spreadsheet.IsMIMEType(declared) {
			return declared
		}
		return spreadsheet.MIMETypeXLSX
	}

	if declared != "" && declared != mimeOctetStream {
		return declared
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return t
	}
	return http.DetectContentType(data)
}
