package submitapplication

import (
	"time"

	"admissions-workers/internal/models"
)

type Input struct {
	AccessToken string             `json:"accessToken"`
	Institution models.Institution `json:"institution"`
	Faculty     models.Faculty     `json:"faculty"`
	Course      models.Course      `json:"course"`
	Marks       models.Marks       `json:"marks"`
}

type Output struct {
	ApplicationID string                   `json:"applicationId"`
	Status        models.ApplicationStatus `json:"status"`
	AppliedAt     time.Time                `json:"appliedAt"`
	Application   *models.Application      `json:"application"`
}

var inputSchema = `{
	"type": "object",
	"required": ["accessToken", "institution", "course", "marks"],
	"properties": {
		"accessToken": {"type": "string", "minLength": 1},
		"institution": {
			"type": "object",
			"required": ["id"],
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"email": {"type": "string"}
			}
		},
		"course": {
			"type": "object",
			"required": ["name"],
			"properties": {
				"name": {"type": "string", "minLength": 1, "maxLength": 200},
				"requirements": {"type": "string"}
			}
		},
		"marks": {
			"type": ["object", "null"],
			"additionalProperties": {"type": "string", "maxLength": 20}
		}
	}
}`
