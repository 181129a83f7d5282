package searchapplications

import (
	"admissions-workers/internal/models"
	"admissions-workers/internal/search"
)

type Input struct {
	AccessToken string       `json:"accessToken"`
	Query       search.Query `json:"query"`
}

type Output struct {
	Total        int64                 `json:"total"`
	Applications []*models.Application `json:"applications"`
}

var inputSchema = `{
	"type": "object",
	"required": ["accessToken"],
	"properties": {
		"accessToken": {"type": "string", "minLength": 1},
		"query": {
			"type": "object",
			"properties": {
				"text": {"type": "string", "maxLength": 200},
				"status": {"enum": ["", "pending", "admitted", "rejected"]},
				"from": {"type": "integer", "minimum": 0},
				"size": {"type": "integer", "minimum": 0}
			}
		}
	}
}`
