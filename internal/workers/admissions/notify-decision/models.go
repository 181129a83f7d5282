package notifydecision

import "admissions-workers/internal/models"

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	Notifications []models.Notification `json:"notifications"`
	Delivered     bool                  `json:"delivered"`
}

var inputSchema = `{
	"type": "object",
	"required": ["applicationId"],
	"properties": {
		"applicationId": {"type": "string", "minLength": 1}
	}
}`
