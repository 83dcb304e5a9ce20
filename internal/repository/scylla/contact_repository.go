package scylla

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"verification-service/internal/models"
	"verification-service/internal/util"
)

// ContactRepositoryInterface abstracts contact-submission persistence.
type ContactRepositoryInterface interface {
	CreateSubmission(submission *models.ContactSubmission) error
	GetSubmissionByID(submissionDate, id string) (*models.ContactSubmission, error)
	ListSubmissionsByDate(submissionDate string, pageState []byte, pageSize int) ([]*models.ContactSubmission, []byte, error)
	MarkResponded(submissionDate, id string) error
}

type ContactRepository struct {
	client *ScyllaClient
}

func NewContactRepository(client *ScyllaClient, logger *zap.Logger) *ContactRepository {
	return &ContactRepository{client: client}
}

func (r *ContactRepository) CreateSubmission(submission *models.ContactSubmission) error {
	if submission.ID == "" {
		submission.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	submission.CreatedAt = now
	if submission.SubmissionDate == "" {
		submission.SubmissionDate = now.Format("2006-01-02")
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusNew
	}

	query := r.client.Prepared.CreateSubmission.Bind(
		submission.SubmissionDate, submission.ID, submission.Name, submission.Company,
		submission.EmailHash, submission.EmailEncrypted, submission.EmailKeyID,
		submission.Message, submission.Status, submission.CreatedAt, submission.RespondedAt)

	if err := r.client.ExecuteWithRetry(query, 3); err != nil {
		util.Error("Failed to create contact submission",
			zap.String("id", submission.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create contact submission: %w", err)
	}

	util.Info("Contact submission created",
		zap.String("id", submission.ID),
		zap.String("submission_date", submission.SubmissionDate))

	return nil
}

func (r *ContactRepository) GetSubmissionByID(submissionDate, id string) (*models.ContactSubmission, error) {
	submission := &models.ContactSubmission{}

	query := r.client.Prepared.GetSubmissionByID.Bind(submissionDate, id)

	err := r.client.ScanWithRetry(query,
		&submission.SubmissionDate, &submission.ID, &submission.Name, &submission.Company,
		&submission.EmailHash, &submission.EmailEncrypted, &submission.EmailKeyID,
		&submission.Message, &submission.Status, &submission.CreatedAt, &submission.RespondedAt)

	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, fmt.Errorf("submission not found with ID: %s", id)
		}
		util.Error("Failed to get contact submission",
			zap.String("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get contact submission: %w", err)
	}

	return submission, nil
}

// ListSubmissionsByDate pages through one day's partition. The returned
// page state, when non-empty, resumes the scan on the next call.
func (r *ContactRepository) ListSubmissionsByDate(submissionDate string, pageState []byte, pageSize int) ([]*models.ContactSubmission, []byte, error) {
	query := r.client.Prepared.ListSubmissionsByDay.Bind(submissionDate).
		PageSize(pageSize).
		PageState(pageState)

	iter := query.Iter()

	var submissions []*models.ContactSubmission
	for {
		submission := &models.ContactSubmission{}
		if !iter.Scan(
			&submission.SubmissionDate, &submission.ID, &submission.Name, &submission.Company,
			&submission.EmailHash, &submission.EmailEncrypted, &submission.EmailKeyID,
			&submission.Message, &submission.Status, &submission.CreatedAt, &submission.RespondedAt) {
			break
		}
		submissions = append(submissions, submission)
	}

	nextPageState := iter.PageState()
	if err := iter.Close(); err != nil {
		util.Error("Failed to list contact submissions",
			zap.String("submission_date", submissionDate),
			zap.Error(err))
		return nil, nil, fmt.Errorf("failed to list contact submissions: %w", err)
	}

	return submissions, nextPageState, nil
}

func (r *ContactRepository) MarkResponded(submissionDate, id string) error {
	now := time.Now().UTC()

	query := r.client.Prepared.MarkSubmissionStatus.Bind(
		models.SubmissionStatusResponded, &now, submissionDate, id)

	if err := r.client.ExecuteWithRetry(query, 3); err != nil {
		util.Error("Failed to mark submission responded",
			zap.String("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to mark submission responded: %w", err)
	}

	return nil
}
