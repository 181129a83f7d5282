package models

import "time"

// Document kinds a student may attach to their profile.
const (
	DocumentTranscripts  = "transcripts"
	DocumentCertificates = "certificates"
)

// IsDocumentKind reports whether kind is accepted for upload.
func IsDocumentKind(kind string) bool {
	switch kind {
	case DocumentTranscripts, DocumentCertificates:
		return true
	}
	return false
}

// StudentDocument is an uploaded file on a student's profile.
type StudentDocument struct {
	StudentID  string    `json:"studentId"`
	Kind       string    `json:"kind"`
	FileName   string    `json:"fileName"`
	ObjectKey  string    `json:"objectKey"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}
