// Package documents uploads student profile documents (transcripts and
// certificates) to the blob store and records them on the profile.
package documents

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/models"
)

const collaboratorBlobs = "blob-store"

// BlobStore is implemented by aws.S3Client.
type BlobStore interface {
	PutObject(ctx context.Context, key, contentType string, body io.Reader) error
	PresignGet(ctx context.Context, key string) (string, error)
}

// Records is implemented by postgres.Documents.
type Records interface {
	SaveDocument(ctx context.Context, doc models.StudentDocument) error
}

type Service struct {
	blobs   BlobStore
	records Records
	now     func() time.Time
	logger  logger.Logger
}

func NewService(blobs BlobStore, records Records, log logger.Logger) *Service {
	return &Service{
		blobs:   blobs,
		records: records,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  log.WithFields(map[string]interface{}{"component": "documents"}),
	}
}

// ObjectKey is where a document lives in the bucket.
func ObjectKey(studentID, kind, fileName string) string {
	return path.Join("students", studentID, kind, fileName)
}

// Upload stores body and records it as the student's document of kind,
// replacing any earlier one.
func (s *Service) Upload(ctx context.Context, studentID, kind, fileName, contentType string, body io.Reader) (*models.StudentDocument, error) {
	if studentID == "" {
		return nil, errors.NewInvalidInputError("student id is required")
	}
	if !models.IsDocumentKind(kind) {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unsupported document kind %q", kind))
	}
	fileName = path.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil, errors.NewInvalidInputError("file name is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := ObjectKey(studentID, kind, fileName)
	if err := s.blobs.PutObject(ctx, key, contentType, body); err != nil {
		return nil, errors.NewCollaboratorUnavailableError(collaboratorBlobs, err)
	}
	url, err := s.blobs.PresignGet(ctx, key)
	if err != nil {
		return nil, errors.NewCollaboratorUnavailableError(collaboratorBlobs, err)
	}

	doc := models.StudentDocument{
		StudentID:  studentID,
		Kind:       kind,
		FileName:   fileName,
		ObjectKey:  key,
		URL:        url,
		UploadedAt: s.now(),
	}
	if err := s.records.SaveDocument(ctx, doc); err != nil {
		return nil, errors.NewCollaboratorUnavailableError("document-store", err)
	}

	s.logger.Info("document uploaded", map[string]interface{}{
		"studentId": studentID,
		"kind":      kind,
		"objectKey": key,
	})
	return &doc, nil
}
