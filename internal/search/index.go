// Package search keeps an Elasticsearch index of applications for admin
// full-text queries.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	apperrors "weekly-intake/internal/common/errors"
	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/intake"
	"weekly-intake/internal/store"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultSize = 50

var ErrMissingQuery = errors.New("search query is required")

// Mapping is the index definition passed to EnsureIndex.
const Mapping = `{
	"mappings": {
		"properties": {
			"id":          {"type": "keyword"},
			"fullName":    {"type": "text"},
			"email":       {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"weekNumber":  {"type": "integer"},
			"year":        {"type": "integer"},
			"submittedAt": {"type": "date"},
			"photoUrl":    {"type": "keyword", "index": false},
			"answers":     {"type": "object", "enabled": false},
			"answersText": {"type": "text"}
		}
	}
}`

type document struct {
	ID          string            `json:"id"`
	FullName    string            `json:"fullName"`
	Email       string            `json:"email"`
	WeekNumber  int               `json:"weekNumber"`
	Year        int               `json:"year"`
	SubmittedAt time.Time         `json:"submittedAt"`
	PhotoURL    *string           `json:"photoUrl,omitempty"`
	Answers     map[string]string `json:"answers"`
	AnswersText string            `json:"answersText"`
}

func toDocument(app store.Application) document {
	texts := make([]string, 0, len(app.Answers))
	for _, k := range app.Answers.Keys() {
		texts = append(texts, app.Answers[k])
	}
	return document{
		ID:          app.ID,
		FullName:    app.FullName,
		Email:       app.Email,
		WeekNumber:  app.WeekNumber,
		Year:        app.Year,
		SubmittedAt: app.SubmittedAt,
		PhotoURL:    app.PhotoURL,
		Answers:     app.Answers,
		AnswersText: strings.Join(texts, "\n"),
	}
}

func (d document) application() store.Application {
	return store.Application{
		ID:          d.ID,
		FullName:    d.FullName,
		Email:       d.Email,
		WeekNumber:  d.WeekNumber,
		Year:        d.Year,
		SubmittedAt: d.SubmittedAt,
		PhotoURL:    d.PhotoURL,
		Answers:     store.Answers(d.Answers),
	}
}

type Index struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndex(client *elasticsearch.Client, index string, log logger.Logger) *Index {
	return &Index{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search", "index": index}),
	}
}

// Put indexes app under its id, replacing any earlier version.
func (i *Index) Put(ctx context.Context, app store.Application) error {
	body, err := json.Marshal(toDocument(app))
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: app.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("index application: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index application: %s: %s", res.Status(), readError(res.Body))
	}
	return nil
}

// Hook indexes every accepted submission.
func (i *Index) Hook() intake.Hook {
	return intake.HookFunc{
		HookName: "search_index",
		Fn:       i.Put,
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search matches query against names, emails and answers within year,
// best match first.
func (i *Index) Search(ctx context.Context, query string, year int) ([]store.Application, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError(ErrMissingQuery.Error(), map[string]string{"q": ErrMissingQuery.Error()})
	}

	body, _ := json.Marshal(buildQuery(query, year))
	size := DefaultSize
	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		err := fmt.Errorf("%s: %s", res.Status(), readError(res.Body))
		i.logger.Error("search failed", map[string]interface{}{"error": err})
		return nil, apperrors.NewSearchQueryFailedError(err)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(fmt.Errorf("decode response: %w", err))
	}

	out := make([]store.Application, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source.application())
	}
	return out, nil
}

func buildQuery(query string, year int) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  query,
					"fields": []string{"fullName^3", "email^2", "answersText"},
					"type":   "best_fields",
				},
			},
		},
	}
	if year > 0 {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"year": year}},
		}
	}
	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
	}
}

func readError(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 1024))
	return strings.TrimSpace(string(b))
}
