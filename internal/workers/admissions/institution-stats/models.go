package institutionstats

import (
	"admissions-workers/internal/lifecycle"
	"admissions-workers/internal/models"
)

// Input selects one institution; without it the whole system is reported.
type Input struct {
	Institution *models.InstitutionRef `json:"institution,omitempty"`
}

type Output struct {
	Stats  *lifecycle.Stats        `json:"stats,omitempty"`
	Report *lifecycle.SystemReport `json:"report,omitempty"`
}

var inputSchema = `{
	"type": "object",
	"properties": {
		"institution": {
			"type": "object",
			"anyOf": [
				{"required": ["id"], "properties": {"id": {"type": "string", "minLength": 1}}},
				{"required": ["email"], "properties": {"email": {"type": "string", "minLength": 1}}},
				{"required": ["name"], "properties": {"name": {"type": "string", "minLength": 1}}}
			]
		}
	}
}`
