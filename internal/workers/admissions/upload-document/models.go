package uploaddocument

import "admissions-workers/internal/models"

type Input struct {
	AccessToken string `json:"accessToken"`
	Kind        string `json:"kind"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType,omitempty"`
	// Content is the file, base64 encoded.
	Content string `json:"content"`
}

type Output struct {
	Document *models.StudentDocument `json:"document"`
}

var inputSchema = `{
	"type": "object",
	"required": ["accessToken", "kind", "fileName", "content"],
	"properties": {
		"accessToken": {"type": "string", "minLength": 1},
		"kind": {"enum": ["transcripts", "certificates"]},
		"fileName": {"type": "string", "minLength": 1, "maxLength": 255},
		"contentType": {"type": "string"},
		"content": {"type": "string", "minLength": 1}
	}
}`
