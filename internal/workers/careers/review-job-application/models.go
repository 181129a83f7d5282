package reviewjobapplication

import (
	"time"

	"admissions-workers/internal/models"
)

type Input struct {
	JobApplicationID string `json:"jobApplicationId"`
	AccessToken      string `json:"accessToken"`
}

type Output struct {
	JobApplicationID string                      `json:"jobApplicationId"`
	Status           models.JobApplicationStatus `json:"status"`
	ReviewedAt       time.Time                   `json:"reviewedAt"`
	ReviewedBy       string                      `json:"reviewedBy"`
}

var inputSchema = `{
	"type": "object",
	"required": ["jobApplicationId", "accessToken"],
	"properties": {
		"jobApplicationId": {"type": "string", "minLength": 1},
		"accessToken": {"type": "string", "minLength": 1}
	}
}`
