package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

const (
	mimePNG = "image/png"
	mimePDF = "application/pdf"
)

// normalizeMIMEType lowercases a content type and drops its parameters
func normalizeMIMEType(contentType string) string {
	mimeType := strings.SplitN(contentType, ";", 2)[0]
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// pdfToImage renders the first page of a PDF as PNG
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// imageToPNG re-encodes JPEG, GIF, PNG and HEIC/HEIF images as PNG
func imageToPNG(data []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	if isHEICFormat(data) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding %s image: %w", mimeType, err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat looks for an ftyp box with a HEIC family brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	mimeType = normalizeMIMEType(mimeType)
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// toPNG converts a PDF or image into PNG for models that only accept
// images. It reports whether a conversion happened.
func toPNG(data []byte, contentType string) ([]byte, bool, error) {
	mimeType := normalizeMIMEType(contentType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	switch {
	case mimeType == mimePDF:
		out, err := pdfToImage(data)
		if err != nil {
			return nil, false, fmt.Errorf("converting PDF to image: %w", err)
		}
		return out, true, nil
	case mimeType != mimePNG || isHEICFormat(data):
		out, err := imageToPNG(data, mimeType)
		if err != nil {
			return nil, false, fmt.Errorf("converting image to PNG: %w", err)
		}
		return out, true, nil
	default:
		return data, false, nil
	}
}
