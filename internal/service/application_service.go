package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"verification-service/internal/audit"
	"verification-service/internal/encryption"
	"verification-service/internal/hashing"
	"verification-service/internal/models"
	"verification-service/internal/repository/scylla"
	"verification-service/internal/util"
)

var (
	ErrInvalidApplication = errors.New("invalid application")
	ErrInvalidInstrument  = errors.New("invalid instrument type")
	ErrInvalidTransition  = errors.New("invalid status transition")
)

// allowedTransitions maps each status to the statuses it may move to.
// Approved and declined are terminal.
var allowedTransitions = map[string][]string{
	models.ApplicationStatusReceived: {models.ApplicationStatusInReview},
	models.ApplicationStatusInReview: {models.ApplicationStatusApproved, models.ApplicationStatusDeclined},
}

var validInstruments = map[string]bool{
	models.InstrumentLetterOfCredit:  true,
	models.InstrumentBankGuarantee:   true,
	models.InstrumentStandbyLC:       true,
	models.InstrumentInvoiceDiscount: true,
	models.InstrumentSupplyChainLoan: true,
}

// ApplicationRequest is the payload accepted from the application form.
type ApplicationRequest struct {
	CompanyName string `json:"company_name"`
	Country     string `json:"country"`
	Instrument  string `json:"instrument"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	Notes       string `json:"notes"`
}

// ApplicationService handles trade-finance application intake and the
// review workflow.
type ApplicationService struct {
	repo          scylla.ApplicationRepositoryInterface
	encryptionMgr *encryption.Manager
	recorder      audit.Recorder
	logger        *zap.Logger
}

func NewApplicationService(
	repo scylla.ApplicationRepositoryInterface,
	encryptionMgr *encryption.Manager,
	recorder audit.Recorder,
	logger *zap.Logger,
) *ApplicationService {
	return &ApplicationService{
		repo:          repo,
		encryptionMgr: encryptionMgr,
		recorder:      recorder,
		logger:        logger,
	}
}

func (s *ApplicationService) SubmitApplication(ctx context.Context, req *ApplicationRequest) (*models.TradeFinanceApplication, error) {
	email := util.NormalizeRecipient(req.Email)
	if !util.IsPlausibleEmail(email) {
		return nil, fmt.Errorf("%w: email", ErrInvalidApplication)
	}

	companyName := util.SanitizeInput(req.CompanyName)
	if companyName == "" {
		return nil, fmt.Errorf("%w: company name is required", ErrInvalidApplication)
	}

	if !validInstruments[req.Instrument] {
		return nil, ErrInvalidInstrument
	}

	encrypted, err := s.encryptionMgr.EncryptField(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt email: %w", err)
	}
	encryptedBytes, err := json.Marshal(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to encode encrypted email: %w", err)
	}

	app := &models.TradeFinanceApplication{
		Status:         models.ApplicationStatusReceived,
		CompanyName:    companyName,
		Country:        util.SanitizeInput(req.Country),
		Instrument:     req.Instrument,
		Amount:         util.SanitizeInput(req.Amount),
		Currency:       util.SanitizeInput(req.Currency),
		EmailHash:      hashing.HashIdentifier(email),
		EmailEncrypted: encryptedBytes,
		EmailKeyID:     encrypted.KeyID,
		Notes:          util.SanitizeInput(req.Notes),
	}

	if err := s.repo.CreateApplication(app); err != nil {
		return nil, err
	}

	s.recorder.Emit(ctx, models.EventApplicationSubmitted, app.EmailHash, "", map[string]string{
		"application_id": app.ID,
		"instrument":     app.Instrument,
	})

	return app, nil
}

func (s *ApplicationService) GetApplication(ctx context.Context, id string) (*models.TradeFinanceApplication, error) {
	return s.repo.GetApplicationByID(id)
}

func (s *ApplicationService) ListApplications(ctx context.Context, status string, pageState []byte, pageSize int) ([]*models.TradeFinanceApplication, []byte, error) {
	if !isValidStatus(status) {
		return nil, nil, fmt.Errorf("%w: unknown status %q", ErrInvalidApplication, status)
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	return s.repo.ListApplicationsByStatus(status, pageState, pageSize)
}

// UpdateStatus advances an application through the review workflow,
// enforcing the allowed transitions.
func (s *ApplicationService) UpdateStatus(ctx context.Context, id, newStatus string) error {
	if !isValidStatus(newStatus) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidApplication, newStatus)
	}

	app, err := s.repo.GetApplicationByID(id)
	if err != nil {
		return err
	}

	if app.Status == newStatus {
		return nil
	}
	if !transitionAllowed(app.Status, newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, app.Status, newStatus)
	}

	if err := s.repo.UpdateApplicationStatus(id, newStatus); err != nil {
		return err
	}

	s.recorder.Emit(ctx, models.EventApplicationUpdated, app.EmailHash, "", map[string]string{
		"application_id": id,
		"old_status":     app.Status,
		"new_status":     newStatus,
	})

	return nil
}

func isValidStatus(status string) bool {
	switch status {
	case models.ApplicationStatusReceived, models.ApplicationStatusInReview,
		models.ApplicationStatusApproved, models.ApplicationStatusDeclined:
		return true
	}
	return false
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
