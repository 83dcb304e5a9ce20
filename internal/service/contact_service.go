package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"verification-service/internal/audit"
	"verification-service/internal/encryption"
	"verification-service/internal/hashing"
	"verification-service/internal/models"
	"verification-service/internal/repository/es"
	"verification-service/internal/repository/scylla"
	"verification-service/internal/util"
)

var (
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrSubmissionTooLong = errors.New("submission field too long")
)

const (
	maxNameLength    = 200
	maxCompanyLength = 200
	maxMessageLength = 5000
)

// ContactSubmissionRequest is the payload accepted from the contact form.
type ContactSubmissionRequest struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ContactService handles contact-form submissions: input sanitization,
// email hashing and envelope encryption, persistence, and asynchronous
// search indexing.
type ContactService struct {
	repo          scylla.ContactRepositoryInterface
	indexer       es.SubmissionIndexerInterface
	encryptionMgr *encryption.Manager
	recorder      audit.Recorder
	logger        *zap.Logger
}

func NewContactService(
	repo scylla.ContactRepositoryInterface,
	indexer es.SubmissionIndexerInterface,
	encryptionMgr *encryption.Manager,
	recorder audit.Recorder,
	logger *zap.Logger,
) *ContactService {
	return &ContactService{
		repo:          repo,
		indexer:       indexer,
		encryptionMgr: encryptionMgr,
		recorder:      recorder,
		logger:        logger,
	}
}

func (s *ContactService) SubmitContact(ctx context.Context, req *ContactSubmissionRequest) (*models.ContactSubmission, error) {
	email := util.NormalizeRecipient(req.Email)
	if !util.IsPlausibleEmail(email) {
		return nil, fmt.Errorf("%w: email", ErrInvalidSubmission)
	}

	name := util.SanitizeInput(req.Name)
	company := util.SanitizeInput(req.Company)
	message := util.SanitizeInput(req.Message)

	if name == "" || message == "" {
		return nil, fmt.Errorf("%w: name and message are required", ErrInvalidSubmission)
	}
	if len(name) > maxNameLength || len(company) > maxCompanyLength || len(message) > maxMessageLength {
		return nil, ErrSubmissionTooLong
	}
	if util.ContainsSuspicious(message) {
		return nil, fmt.Errorf("%w: message rejected", ErrInvalidSubmission)
	}

	encrypted, err := s.encryptionMgr.EncryptField(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt email: %w", err)
	}
	encryptedBytes, err := json.Marshal(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to encode encrypted email: %w", err)
	}

	submission := &models.ContactSubmission{
		Name:           name,
		Company:        company,
		EmailHash:      hashing.HashIdentifier(email),
		EmailEncrypted: encryptedBytes,
		EmailKeyID:     encrypted.KeyID,
		Message:        message,
		Status:         models.SubmissionStatusNew,
	}

	if err := s.repo.CreateSubmission(submission); err != nil {
		return nil, err
	}

	s.recorder.Emit(ctx, models.EventContactSubmitted, submission.EmailHash, "", map[string]string{
		"submission_id": submission.ID,
	})

	// Index off the request path; a search lag is acceptable, a slow
	// form post is not.
	go s.indexAsync(submission)

	return submission, nil
}

func (s *ContactService) indexAsync(submission *models.ContactSubmission) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.indexer.IndexSubmission(ctx, submission); err != nil {
		s.logger.Error("Failed to index contact submission",
			util.String("id", submission.ID),
			util.ErrorField(err),
		)
	}
}

func (s *ContactService) GetSubmission(ctx context.Context, submissionDate, id string) (*models.ContactSubmission, error) {
	return s.repo.GetSubmissionByID(submissionDate, id)
}

func (s *ContactService) ListSubmissions(ctx context.Context, submissionDate string, pageState []byte, pageSize int) ([]*models.ContactSubmission, []byte, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	return s.repo.ListSubmissionsByDate(submissionDate, pageState, pageSize)
}

func (s *ContactService) MarkResponded(ctx context.Context, submissionDate, id string) error {
	return s.repo.MarkResponded(submissionDate, id)
}

// SearchSubmissions searches the index. A plausible email term is
// converted to its hash so operators can look up by address without the
// index ever holding one.
func (s *ContactService) SearchSubmissions(ctx context.Context, term string, size int) ([]*es.SubmissionDocument, error) {
	normalized := util.NormalizeRecipient(term)
	if util.IsPlausibleEmail(normalized) {
		term = hashing.HashIdentifier(normalized)
	}
	return s.indexer.SearchSubmissions(ctx, term, size)
}

// DecryptEmail recovers a submission's email for operator workflows.
func (s *ContactService) DecryptEmail(ctx context.Context, submission *models.ContactSubmission) (string, error) {
	var encrypted encryption.EncryptedData
	if err := json.Unmarshal(submission.EmailEncrypted, &encrypted); err != nil {
		return "", fmt.Errorf("failed to decode encrypted email: %w", err)
	}
	return s.encryptionMgr.DecryptField(ctx, &encrypted)
}
