// Package ingest implements the Document Ingestor: MIME/extension-gated
// upload of a document attachment to a file store, attached to an
// ephemeral, thread-scoped vector index with a TTL. Grounded directly on
// original_source/tools/document_processor.py's supported_types table and
// upload_to_openai, with the file-store/vector-store client abstracted
// behind FileStore so internal/llmprovider/openairesp can supply the real
// openai-go/v3 implementation.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/livia-chatops/livia/internal/media"
	"github.com/livia-chatops/livia/internal/model"
	"github.com/livia-chatops/livia/internal/session"
)

// supportedMIME mirrors document_processor.py's supported_types dict,
// folding Google-native MIME aliases (Sheets/Docs) into the same
// extensions spec.md names: pdf, csv, xls, xlsx, doc, docx, txt.
var supportedMIME = map[string]string{
	"application/pdf": ".pdf",
	"text/csv":        ".csv",
	"application/vnd.ms-excel":                                                 ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":        ".xlsx",
	"application/vnd.google-apps.spreadsheet":                                  ".xlsx",
	"application/vnd.google-apps.document":                                     ".docx",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":  ".docx",
	"text/plain": ".txt",
}

var supportedExtensions = []string{".pdf", ".csv", ".xls", ".xlsx", ".doc", ".docx", ".txt"}

// IsSupportedDocument reports whether a document attachment's MIME type or
// filename extension is one this engine can ingest.
func IsSupportedDocument(mimeType, filename string) bool {
	if _, ok := supportedMIME[mimeType]; ok {
		return true
	}
	lower := strings.ToLower(filename)
	for _, ext := range supportedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// FileStore is the minimal file + vector-store upload surface the Document
// Ingestor needs. internal/llmprovider/openairesp implements this against
// openai-go/v3's Files and VectorStores clients.
type FileStore interface {
	UploadFile(ctx context.Context, filename string, data []byte) (fileID string, err error)
	CreateOrAppendVectorIndex(ctx context.Context, existingIndexID, fileID string) (indexID string, err error)
}

// Ingestor ties document downloads to the file store and a thread's
// ephemeral vector index.
type Ingestor struct {
	store FileStore
	ttl   time.Duration
}

func NewIngestor(store FileStore, ttl time.Duration) *Ingestor {
	return &Ingestor{store: store, ttl: ttl}
}

// Downloader fetches the raw bytes of a document attachment from wherever
// the chat platform hosts it.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// IngestAll uploads every supported document in docs, attaching each to
// thread's ephemeral vector index (creating it on first use, appending on
// subsequent ones), and refreshes the index's TTL clock.
func (in *Ingestor) IngestAll(ctx context.Context, dl Downloader, thread *model.ThreadState, docs []model.DocumentRef) error {
	for _, d := range docs {
		mimeType, filename := d.MimeType, d.Filename
		supported := IsSupportedDocument(mimeType, filename)
		// A generic or absent MIME type with no filename extension gives
		// IsSupportedDocument nothing to go on; only then is it worth
		// downloading the bytes just to sniff them.
		maybeSniffable := !supported && (mimeType == "" || mimeType == "application/octet-stream") && !strings.Contains(filename, ".")
		if !supported && !maybeSniffable {
			continue
		}

		data, err := dl.Download(ctx, d.URL)
		if err != nil {
			return fmt.Errorf("ingest: download %s: %w", d.Filename, err)
		}

		if !supported {
			sniffed, ext := media.DetectMimeAndExt(data)
			mimeType = sniffed
			filename += ext
			if !IsSupportedDocument(mimeType, filename) {
				continue
			}
		}

		fileID, err := in.store.UploadFile(ctx, filename, data)
		if err != nil {
			return fmt.Errorf("ingest: upload %s: %w", d.Filename, err)
		}
		indexID, err := in.store.CreateOrAppendVectorIndex(ctx, thread.VectorIndexID, fileID)
		if err != nil {
			return fmt.Errorf("ingest: index %s: %w", d.Filename, err)
		}
		thread.VectorIndexID = indexID
		thread.VectorIndexAt = time.Now()
	}
	return nil
}

// SweepExpired walks the thread store evicting any vector index whose TTL
// has elapsed, returning the evicted index IDs. cmd/livia's periodic sweep
// calls Store.SweepExpiredIndices directly rather than this wrapper.
func SweepExpired(store *session.Store, ttl time.Duration) []string {
	return store.SweepExpiredIndices(ttl)
}
