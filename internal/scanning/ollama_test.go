package scanning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server   *ghttp.Server
		scanner  *Ollama
		ctx      context.Context
		req      Request
		captured ollamaChatRequest
		text     string
		err      error
	)

	capture := func(w http.ResponseWriter, r *http.Request) {
		body, readErr := io.ReadAll(r.Body)
		Expect(readErr).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, &captured)).To(Succeed())
	}

	BeforeEach(func() {
		server = ghttp.NewServer()
		captured = ollamaChatRequest{}
		scanner, err = NewOllama(server.URL()+"/", "llava")
		Expect(err).NotTo(HaveOccurred())
		req = Request{Prompt: "extract this"}
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = scanner.Scan(ctx, req)
	})

	When("the server answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				capture,
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: `{"invoices": []}`},
					Done:    true,
				}),
			))
		})

		It("should return the reply text", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal(`{"invoices": []}`))
		})

		It("should send the prompt as the user message", func() {
			Expect(captured.Model).To(Equal("llava"))
			Expect(captured.Stream).To(BeFalse())
			Expect(captured.Messages).To(HaveLen(2))
			Expect(captured.Messages[1].Content).To(Equal("extract this"))
			Expect(captured.Messages[1].Images).To(BeEmpty())
		})

		When("an image is attached", func() {
			BeforeEach(func() {
				req.Data = pngBytes()
				req.MIMEType = "image/png"
			})

			It("should attach it to the user message", func() {
				Expect(captured.Messages[1].Images).To(HaveLen(1))
			})
		})
	})

	When("the server returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("should return a transport error", func() {
			Expect(err).To(MatchError(ErrTransport))
			Expect(err.Error()).To(ContainSubstring("model not loaded"))
		})
	})

	When("the context expires", func() {
		BeforeEach(func() {
			server.AppendHandlers(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			})
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
			DeferCleanup(cancel)
		})

		It("should return a transport error wrapping the deadline", func() {
			Expect(err).To(MatchError(ErrTransport))
			Expect(err).To(MatchError(context.DeadlineExceeded))
		})
	})
})
