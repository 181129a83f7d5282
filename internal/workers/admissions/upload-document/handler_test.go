package uploaddocument

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"io"
	"strings"
	"testing"

	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/documents"
	"admissions-workers/internal/models"
	"admissions-workers/internal/session/sessiontest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBlobs struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBlobs) PutObject(_ context.Context, key, contentType string, body io.Reader) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = b
	m.types[key] = contentType
	return nil
}

func (m *memBlobs) PresignGet(_ context.Context, key string) (string, error) {
	return "https://docs.example/" + key + "?sig=x", nil
}

type memRecords struct{ docs []models.StudentDocument }

func (m *memRecords) SaveDocument(_ context.Context, doc models.StudentDocument) error {
	m.docs = append(m.docs, doc)
	return nil
}

func createTestHandler(t *testing.T, maxBytes int) (*Handler, *memBlobs, *memRecords) {
	blobs, records := newMemBlobs(), &memRecords{}
	cfg := DefaultConfig()
	cfg.MaxBytes = maxBytes
	svc := documents.NewService(blobs, records, logger.NewTestLogger(t))
	sessions := sessiontest.NewCache(t, sessiontest.Tokens{
		"tok-stu-1": models.Student{ID: "stu-1", Name: "Lineo"},
		"tok-inst":  models.Institute{ID: "inst-a", Name: "NUL"},
	})
	return NewHandler(cfg, svc, sessions, logger.NewTestLogger(t)), blobs, records
}

func TestHandler_Execute_Success(t *testing.T) {
	h, blobs, records := createTestHandler(t, 1024)

	out, err := h.Execute(context.Background(), &Input{
		AccessToken: "tok-stu-1",
		Kind:        models.DocumentTranscripts,
		FileName:    "../../grade12.pdf",
		ContentType: "application/pdf",
		Content:     base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 transcript")),
	})
	require.NoError(t, err)

	key := "students/stu-1/transcripts/grade12.pdf"
	assert.Equal(t, key, out.Document.ObjectKey)
	assert.Equal(t, "%PDF-1.4 transcript", string(blobs.objects[key]))
	assert.Equal(t, "application/pdf", blobs.types[key])
	assert.True(t, strings.HasPrefix(out.Document.URL, "https://docs.example/"+key))
	require.Len(t, records.docs, 1)
}

func TestHandler_Execute_Rejections(t *testing.T) {
	valid := base64.StdEncoding.EncodeToString([]byte("hello"))

	tests := []struct {
		name  string
		input Input
	}{
		{"unknown kind", Input{AccessToken: "tok-stu-1", Kind: "passport", FileName: "p.pdf", Content: valid}},
		{"missing token", Input{Kind: models.DocumentCertificates, FileName: "c.pdf", Content: valid}},
		{"not base64", Input{AccessToken: "tok-stu-1", Kind: models.DocumentCertificates, FileName: "c.pdf", Content: "@@@"}},
		{"too large", Input{AccessToken: "tok-stu-1", Kind: models.DocumentCertificates, FileName: "c.pdf",
			Content: base64.StdEncoding.EncodeToString(make([]byte, 64))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, blobs, _ := createTestHandler(t, 32)
			_, err := h.Execute(context.Background(), &tt.input)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidInput), "got %v", err)
			assert.Empty(t, blobs.objects)
		})
	}
}

func TestHandler_Execute_StoresUnderTokenHolder(t *testing.T) {
	content := base64.StdEncoding.EncodeToString([]byte("certificate"))

	h, blobs, _ := createTestHandler(t, 1024)
	_, err := h.Execute(context.Background(), &Input{
		AccessToken: "tok-inst", Kind: models.DocumentCertificates, FileName: "c.pdf", Content: content,
	})
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized), "got %v", err)

	_, err = h.Execute(context.Background(), &Input{
		AccessToken: "tok-revoked", Kind: models.DocumentCertificates, FileName: "c.pdf", Content: content,
	})
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized), "got %v", err)
	assert.Empty(t, blobs.objects)
}
