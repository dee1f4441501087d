package scanning

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model name is configured
const DefaultOpenAIModel = openai.GPT4o

// OpenAI implements the Scanner interface with the chat completions API of
// OpenAI or any compatible server. Attachments go as PNG data URLs.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a new OpenAI Scanner instance. baseURL may point at a
// compatible server; empty means the public API.
func NewOpenAI(apiKey, modelName, baseURL string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
	}, nil
}

// Scan sends the prompt and optional document as one user message
func (o *OpenAI) Scan(ctx context.Context, req Request) (string, error) {
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.HasAttachment() {
		data, _, err := toPNG(req.Data, req.MIMEType)
		if err != nil {
			return "", err
		}
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:" + mimePNG + ";base64," + base64.StdEncoding.EncodeToString(data),
					Detail: openai.ImageURLDetailHigh,
				},
			},
		}
	} else {
		user.Content = req.Prompt
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You read invoices carefully and answer only with JSON.",
			},
			user,
		},
	})
	if err != nil {
		return "", transportError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", transportError("openai", errors.New("no response choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op; the client holds no resources
func (o *OpenAI) Close() error {
	return nil
}
