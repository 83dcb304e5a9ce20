package es

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"verification-service/internal/client"
	"verification-service/internal/models"
	"verification-service/internal/util"
)

// SubmissionDocument is the searchable projection of a contact submission.
// It carries the email hash for correlation but never the email itself.
type SubmissionDocument struct {
	ID             string    `json:"id"`
	SubmissionDate string    `json:"submission_date"`
	Name           string    `json:"name"`
	Company        string    `json:"company"`
	EmailHash      string    `json:"email_hash"`
	Message        string    `json:"message"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// SubmissionIndexerInterface abstracts the search index over contact
// submissions.
type SubmissionIndexerInterface interface {
	IndexSubmission(ctx context.Context, submission *models.ContactSubmission) error
	SearchSubmissions(ctx context.Context, term string, size int) ([]*SubmissionDocument, error)
}

type SubmissionIndexer struct {
	client *client.ESClient
	index  string
}

func NewSubmissionIndexer(esClient *client.ESClient, index string, logger *zap.Logger) *SubmissionIndexer {
	return &SubmissionIndexer{
		client: esClient,
		index:  index,
	}
}

func (i *SubmissionIndexer) IndexSubmission(ctx context.Context, submission *models.ContactSubmission) error {
	doc := SubmissionDocument{
		ID:             submission.ID,
		SubmissionDate: submission.SubmissionDate,
		Name:           submission.Name,
		Company:        submission.Company,
		EmailHash:      submission.EmailHash,
		Message:        submission.Message,
		Status:         submission.Status,
		CreatedAt:      submission.CreatedAt,
	}

	if err := i.client.IndexDocument(ctx, i.index, submission.ID, doc); err != nil {
		util.Error("Failed to index contact submission",
			zap.String("id", submission.ID),
			zap.Error(err))
		return fmt.Errorf("failed to index submission: %w", err)
	}

	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source SubmissionDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchSubmissions runs a free-text query over name, company and message,
// with exact matching on the email hash.
func (i *SubmissionIndexer) SearchSubmissions(ctx context.Context, term string, size int) ([]*SubmissionDocument, error) {
	if size <= 0 {
		size = 20
	}

	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{
						"multi_match": map[string]interface{}{
							"query":  term,
							"fields": []string{"name", "company", "message"},
						},
					},
					{
						"term": map[string]interface{}{
							"email_hash": term,
						},
					},
				},
			},
		},
		"sort": []map[string]interface{}{
			{"created_at": map[string]interface{}{"order": "desc"}},
		},
	}

	res, err := i.client.Search(ctx, i.index, query)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := i.client.ParseResponse(res, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	docs := make([]*SubmissionDocument, 0, len(parsed.Hits.Hits))
	for idx := range parsed.Hits.Hits {
		docs = append(docs, &parsed.Hits.Hits[idx].Source)
	}
	return docs, nil
}
