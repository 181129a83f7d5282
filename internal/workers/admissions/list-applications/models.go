package listapplications

import "admissions-workers/internal/models"

type Input struct {
	AccessToken string `json:"accessToken"`
}

// Output always carries both lists, empty when the role cannot see one.
type Output struct {
	Applications    []*models.Application    `json:"applications"`
	JobApplications []*models.JobApplication `json:"jobApplications"`
	Total           int                      `json:"total"`
}

var inputSchema = `{
	"type": "object",
	"required": ["accessToken"],
	"properties": {
		"accessToken": {"type": "string", "minLength": 1}
	}
}`
