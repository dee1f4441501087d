package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-extractor/internal/aggregate"
	"github.com/zombor/invoice-extractor/internal/extraction"
)

// Extractor runs one document through the extraction pipeline
type Extractor interface {
	Extract(ctx context.Context, doc extraction.Document, prompt string) (*extraction.Batch, error)
}

// IDGenerator generates unique IDs for batches
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type realTimeSource struct{}

func (realTimeSource) Now() time.Time {
	return time.Now()
}

// Service extracts uploaded documents and archives the results
type Service struct {
	db          DB
	extractor   Extractor
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a Service with uuid IDs and the wall clock
func NewService(db DB, extractor Extractor, storage Storage) *Service {
	return NewServiceWithDeps(db, extractor, storage, uuidGenerator{}, realTimeSource{})
}

// NewServiceWithDeps creates a Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor Extractor, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// storageName keeps uploaded names short and free of path characters
func storageName(id, filename string) string {
	filename = path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if filename == "." || filename == "/" {
		filename = ""
	}
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) < 2 || unsafeChars.MatchString(ext[1:]) {
		ext = ""
	}
	base := strings.TrimSuffix(filename, path.Ext(filename))
	base = spaceRuns.ReplaceAllString(unsafeChars.ReplaceAllString(base, ""), "_")
	base = strings.Trim(base, "_")
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "document"
	}
	return fmt.Sprintf("%s_%s%s", id, base, ext)
}

// ProcessDocument stores the upload, runs it through the pipeline and
// archives the batch. Pipeline failures that end the whole document are
// returned as is, and nothing is archived for them. A batch whose
// candidates all failed is still archived and returned.
func (s *Service) ProcessDocument(ctx context.Context, filename string, data []byte, contentType, prompt string) (*Batch, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()
	contentType = DetectContentType(data, contentType, filename)

	savedPath, err := s.storage.Save(storageName(id, filename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	result, err := s.extractor.Extract(ctx, extraction.Document{
		Data:     data,
		MIMEType: contentType,
		Filename: filename,
	}, prompt)
	if err != nil {
		slog.Error("Failed to extract document",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.removeFile(savedPath)
		return nil, err
	}

	batch := Assemble(result, now)
	batch.ID = id
	batch.SourceFile = filename
	batch.Filename = savedPath
	batch.ContentType = contentType

	if err := s.db.SaveBatch(batch); err != nil {
		s.removeFile(savedPath)
		return nil, fmt.Errorf("saving batch to database: %w", err)
	}

	slog.Info("Archived batch",
		"id", id,
		"filename", filename,
		"outcomes", len(batch.Outcomes),
		"status", batch.Metadata.ValidationStatus,
	)
	return batch, nil
}

// ProcessDataURL decodes a data URL and processes it like an upload
func (s *Service) ProcessDataURL(ctx context.Context, dataURL, filename, prompt string) (*Batch, error) {
	mimeType, data, err := ParseDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	return s.ProcessDocument(ctx, filename, data, mimeType, prompt)
}

// Assemble turns a pipeline result into a batch with its flat tables and
// batch level metadata. Identity and storage fields are left to the caller.
func Assemble(result *extraction.Batch, now time.Time) *Batch {
	outcomes := make([]OutcomeView, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		outcomes = append(outcomes, newOutcomeView(o))
	}

	records := result.Records()
	var entries []aggregate.InvoiceEntry
	for _, rec := range records {
		entries = append(entries, aggregate.EntriesFromRecord(rec)...)
	}
	tables := aggregate.Aggregate(entries)

	return &Batch{
		Strategy:  result.Strategy,
		Outcomes:  outcomes,
		Tables:    tables,
		Metadata:  aggregate.BuildMetadata(tables, records, len(result.Failed()), result.Warnings, result.SourceFile, now),
		CreatedAt: now,
	}
}

func (s *Service) removeFile(name string) {
	if err := s.storage.Delete(name); err != nil {
		slog.Warn("Failed to delete file", "filename", name, "error", err)
	}
}

// Get retrieves a batch by ID
func (s *Service) Get(id string) (*Batch, error) {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}
	return batch, nil
}

// List returns all batches, newest first
func (s *Service) List() ([]*Batch, error) {
	batches, err := s.db.ListBatches()
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	return batches, nil
}

// Delete removes a batch and its source file
func (s *Service) Delete(id string) error {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return fmt.Errorf("getting batch for deletion: %w", err)
	}

	// a missing file does not keep the batch alive
	s.removeFile(batch.Filename)

	if err := s.db.DeleteBatch(id); err != nil {
		return fmt.Errorf("deleting batch from database: %w", err)
	}
	return nil
}

// GetFile returns the stored source file of a batch and its content type
func (s *Service) GetFile(id string) ([]byte, string, error) {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting batch: %w", err)
	}

	data, err := s.storage.Get(batch.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting batch file: %w", err)
	}
	return data, batch.ContentType, nil
}

