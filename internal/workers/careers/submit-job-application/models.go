package submitjobapplication

import "admissions-workers/internal/models"

type Input struct {
	AccessToken string            `json:"accessToken"`
	Job         models.JobPosting `json:"job"`
}

type Output struct {
	JobApplicationID string                 `json:"jobApplicationId"`
	JobApplication   *models.JobApplication `json:"jobApplication"`
}

var inputSchema = `{
	"type": "object",
	"required": ["accessToken", "job"],
	"properties": {
		"accessToken": {"type": "string", "minLength": 1},
		"job": {
			"type": "object",
			"required": ["id", "companyId"],
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"companyId": {"type": "string", "minLength": 1},
				"title": {"type": "string", "maxLength": 200}
			}
		}
	}
}`
