package openairesp

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"
)

// FileStore implements ingest.FileStore against the OpenAI Files and
// VectorStores APIs, grounded on
// original_source/tools/document_processor.py's upload_to_openai (download
// from the chat platform, upload to the OpenAI file store, attach to a
// vector store).
type FileStore struct {
	client *openai.Client
}

func NewFileStore(client *openai.Client) *FileStore {
	return &FileStore{client: client}
}

func (s *FileStore) UploadFile(ctx context.Context, filename string, data []byte) (string, error) {
	f, err := s.client.Files.New(ctx, openai.FileNewParams{
		File:    bytes.NewReader(data),
		Purpose: "assistants",
	})
	if err != nil {
		return "", fmt.Errorf("openairesp: upload file %s: %w", filename, err)
	}
	return f.ID, nil
}

func (s *FileStore) CreateOrAppendVectorIndex(ctx context.Context, existingIndexID, fileID string) (string, error) {
	if existingIndexID != "" {
		_, err := s.client.VectorStores.Files.New(ctx, existingIndexID, openai.VectorStoreFileNewParams{
			FileID: fileID,
		})
		if err != nil {
			return "", fmt.Errorf("openairesp: append to vector index %s: %w", existingIndexID, err)
		}
		return existingIndexID, nil
	}

	vs, err := s.client.VectorStores.New(ctx, openai.VectorStoreNewParams{
		Name: openai.String("thread-ephemeral-index"),
	})
	if err != nil {
		return "", fmt.Errorf("openairesp: create vector index: %w", err)
	}
	if _, err := s.client.VectorStores.Files.New(ctx, vs.ID, openai.VectorStoreFileNewParams{FileID: fileID}); err != nil {
		return "", fmt.Errorf("openairesp: attach file to new vector index: %w", err)
	}
	return vs.ID, nil
}
