package scanning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model name is configured
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini implements the Scanner interface using Google Gemini. PDFs are sent
// inline as they are; other images are normalized to PNG.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Scan sends the prompt and optional document to Gemini
func (g *Gemini) Scan(ctx context.Context, req Request) (string, error) {
	parts, err := geminiParts(req)
	if err != nil {
		return "", err
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", transportError("gemini", err)
	}
	return responseText(resp)
}

func geminiParts(req Request) ([]genai.Part, error) {
	parts := []genai.Part{genai.Text(req.Prompt)}
	if !req.HasAttachment() {
		return parts, nil
	}

	if normalizeMIMEType(req.MIMEType) == mimePDF {
		return append(parts, genai.Blob{MIMEType: mimePDF, Data: req.Data}), nil
	}

	data, _, err := toPNG(req.Data, req.MIMEType)
	if err != nil {
		return nil, err
	}
	// genai.ImageData takes the format suffix, not the MIME type
	return append(parts, genai.ImageData("png", data)), nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", transportError("gemini", errors.New("no response candidates"))
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String(), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
