package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/livia-chatops/livia/internal/model"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedDocument_ByMIME(t *testing.T) {
	require.True(t, IsSupportedDocument("application/pdf", "report"))
}

func TestIsSupportedDocument_ByExtension(t *testing.T) {
	require.True(t, IsSupportedDocument("application/octet-stream", "notes.docx"))
}

func TestIsSupportedDocument_GoogleNative(t *testing.T) {
	require.True(t, IsSupportedDocument("application/vnd.google-apps.spreadsheet", "budget"))
}

func TestIsSupportedDocument_Rejects(t *testing.T) {
	require.False(t, IsSupportedDocument("video/mp4", "clip.mp4"))
}

type fakeStore struct{ uploaded int }

func (f *fakeStore) UploadFile(ctx context.Context, filename string, data []byte) (string, error) {
	f.uploaded++
	return "file-1", nil
}
func (f *fakeStore) CreateOrAppendVectorIndex(ctx context.Context, existingIndexID, fileID string) (string, error) {
	if existingIndexID != "" {
		return existingIndexID, nil
	}
	return "index-1", nil
}

type fakeDownloader struct{}

func (fakeDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	return []byte("data"), nil
}

func TestIngestAll_SetsVectorIndexAndTTLClock(t *testing.T) {
	store := &fakeStore{}
	in := NewIngestor(store, 24*time.Hour)
	thread := &model.ThreadState{}

	err := in.IngestAll(context.Background(), fakeDownloader{}, thread, []model.DocumentRef{
		{Filename: "a.pdf", MimeType: "application/pdf"},
	})
	require.NoError(t, err)
	require.Equal(t, "index-1", thread.VectorIndexID)
	require.False(t, thread.VectorIndexAt.IsZero())
}

func TestIngestAll_SkipsUnsupported(t *testing.T) {
	store := &fakeStore{}
	in := NewIngestor(store, 24*time.Hour)
	thread := &model.ThreadState{}

	err := in.IngestAll(context.Background(), fakeDownloader{}, thread, []model.DocumentRef{
		{Filename: "video.mp4", MimeType: "video/mp4"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, store.uploaded)
	require.Empty(t, thread.VectorIndexID)
}

type sniffDownloader struct{ data []byte }

func (d sniffDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	return d.data, nil
}

func TestIngestAll_SniffsMissingMimeAndExtension(t *testing.T) {
	store := &fakeStore{}
	in := NewIngestor(store, 24*time.Hour)
	thread := &model.ThreadState{}

	err := in.IngestAll(context.Background(), sniffDownloader{data: []byte("%PDF-1.4 fake pdf body")}, thread, []model.DocumentRef{
		{Filename: "attachment", MimeType: ""},
	})
	require.NoError(t, err)
	require.Equal(t, 1, store.uploaded)
	require.Equal(t, "index-1", thread.VectorIndexID)
}

func TestIngestAll_SkipsWhenSniffedTypeAlsoUnsupported(t *testing.T) {
	store := &fakeStore{}
	in := NewIngestor(store, 24*time.Hour)
	thread := &model.ThreadState{}

	err := in.IngestAll(context.Background(), sniffDownloader{data: []byte("\x89PNG\r\n\x1a\n")}, thread, []model.DocumentRef{
		{Filename: "attachment", MimeType: ""},
	})
	require.NoError(t, err)
	require.Equal(t, 0, store.uploaded)
	require.Empty(t, thread.VectorIndexID)
}
