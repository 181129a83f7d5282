// Package search mirrors applications into Elasticsearch for the admin
// console's free-text search.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"admissions-workers/internal/common/config"
	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/lifecycle"
	"admissions-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const collaboratorSearch = "search-index"

// Query selects applications. Text matches student, institution, faculty and
// course names; the other fields are exact filters.
type Query struct {
	Text          string `json:"text,omitempty"`
	Status        string `json:"status,omitempty"`
	InstitutionID string `json:"institutionId,omitempty"`
	StudentID     string `json:"studentId,omitempty"`
	From          int    `json:"from,omitempty"`
	Size          int    `json:"size,omitempty"`
}

type Result struct {
	Total        int64                 `json:"total"`
	Applications []*models.Application `json:"applications"`
}

type Index struct {
	client      *elasticsearch.Client
	index       string
	defaultSize int
	maxSize     int
	logger      logger.Logger
}

var _ lifecycle.Indexer = (*Index)(nil)

func New(client *elasticsearch.Client, cfg config.SearchConfig, log logger.Logger) *Index {
	idx := &Index{
		client:      client,
		index:       cfg.Index,
		defaultSize: cfg.DefaultSize,
		maxSize:     cfg.MaxSize,
		logger:      log.WithFields(map[string]interface{}{"component": "search"}),
	}
	if idx.index == "" {
		idx.index = "applications"
	}
	if idx.maxSize <= 0 {
		idx.maxSize = 100
	}
	if idx.defaultSize <= 0 {
		idx.defaultSize = 20
	}
	return idx
}

// ClampSize keeps a page size within [1, max], substituting def for zero.
func ClampSize(size, def, max int) int {
	if size == 0 {
		size = def
	}
	if size < 1 {
		return 1
	}
	if size > max {
		return max
	}
	return size
}

var mapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"studentId":       map[string]string{"type": "keyword"},
			"studentName":     map[string]string{"type": "text"},
			"institutionId":   map[string]string{"type": "keyword"},
			"institutionName": map[string]string{"type": "text"},
			"facultyName":     map[string]string{"type": "text"},
			"courseName":      map[string]string{"type": "text"},
			"status":          map[string]string{"type": "keyword"},
			"appliedAt":       map[string]string{"type": "date"},
			"studentMarks":    map[string]interface{}{"type": "object", "enabled": false},
		},
	},
}

// EnsureIndex creates the index with its mapping unless it exists.
func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.index}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.NewCollaboratorUnavailableError(collaboratorSearch, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := json.Marshal(mapping)
	res, err = i.client.Indices.Create(i.index,
		i.client.Indices.Create.WithBody(bytes.NewReader(body)),
		i.client.Indices.Create.WithContext(ctx))
	if err != nil {
		return errors.NewCollaboratorUnavailableError(collaboratorSearch, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}
	i.logger.Info("search index created", map[string]interface{}{"index": i.index})
	return nil
}

// IndexApplication writes app under its id, replacing the previous version.
func (i *Index) IndexApplication(ctx context.Context, app *models.Application) error {
	body, err := json.Marshal(app)
	if err != nil {
		return errors.NewInvalidInputError("application is not serialisable: " + err.Error())
	}
	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: app.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return errors.NewCollaboratorUnavailableError(collaboratorSearch, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}
	return nil
}

// Search runs q. A missing index yields an empty result.
func (i *Index) Search(ctx context.Context, q Query) (*Result, error) {
	if q.From < 0 {
		return nil, errors.NewInvalidInputError("from must not be negative")
	}
	size := ClampSize(q.Size, i.defaultSize, i.maxSize)

	body, _ := json.Marshal(buildQuery(q))
	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(bytes.NewReader(body)),
		i.client.Search.WithFrom(q.From),
		i.client.Search.WithSize(size),
	)
	if err != nil {
		return nil, errors.NewCollaboratorUnavailableError(collaboratorSearch, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return &Result{Applications: []*models.Application{}}, nil
	}
	if res.IsError() {
		return nil, responseError(res)
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Application `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewCollaboratorUnavailableError(collaboratorSearch, fmt.Errorf("decode response: %w", err))
	}

	out := &Result{
		Total:        parsed.Hits.Total.Value,
		Applications: make([]*models.Application, 0, len(parsed.Hits.Hits)),
	}
	for k := range parsed.Hits.Hits {
		app := parsed.Hits.Hits[k].Source
		out.Applications = append(out.Applications, &app)
	}
	return out, nil
}

func buildQuery(q Query) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"studentName^2", "courseName^2", "institutionName", "facultyName"},
				"type":   "best_fields",
			},
		})
	}
	for _, term := range [][2]string{
		{"status", q.Status},
		{"institutionId", q.InstitutionID},
		{"studentId", q.StudentID},
	} {
		if term[1] != "" {
			filter = append(filter, map[string]interface{}{"term": map[string]interface{}{term[0]: term[1]}})
		}
	}
	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must, "filter": filter},
		},
		"sort": []interface{}{
			map[string]interface{}{"appliedAt": map[string]string{"order": "desc"}},
		},
	}
}

// responseError keeps the raw body out of the user-facing message.
func responseError(res *esapi.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	cause := fmt.Errorf("%s: %s", res.Status(), bytes.TrimSpace(raw))
	if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
		return errors.NewCollaboratorUnavailableError(collaboratorSearch, cause)
	}
	return errors.NewInvalidInputError("search request rejected: " + cause.Error())
}
