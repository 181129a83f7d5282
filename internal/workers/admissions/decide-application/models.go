package decideapplication

import (
	"time"

	"admissions-workers/internal/models"
)

type Input struct {
	ApplicationID string                   `json:"applicationId"`
	Outcome       models.ApplicationStatus `json:"outcome"`
	AccessToken   string                   `json:"accessToken"`
}

type Output struct {
	ApplicationID  string                   `json:"applicationId"`
	Status         models.ApplicationStatus `json:"status"`
	ReviewedAt     time.Time                `json:"reviewedAt"`
	ReviewedBy     string                   `json:"reviewedBy"`
	ReviewedByName string                   `json:"reviewedByName"`
	StudentID      string                   `json:"studentId"`
}

// outcome is left open; unknown values are reported as InvalidOutcome.
var inputSchema = `{
	"type": "object",
	"required": ["applicationId", "outcome", "accessToken"],
	"properties": {
		"applicationId": {"type": "string", "minLength": 1},
		"outcome": {"type": "string"},
		"accessToken": {"type": "string", "minLength": 1}
	}
}`
