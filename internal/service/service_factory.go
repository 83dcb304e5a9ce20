package service

import (
	"go.uber.org/zap"

	"verification-service/internal/audit"
	"verification-service/internal/encryption"
	"verification-service/internal/notifier"
	"verification-service/internal/otp"
	"verification-service/internal/ratelimit"
	"verification-service/internal/repository/es"
	"verification-service/internal/repository/scylla"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	limiter       *ratelimit.Limiter
	codes         *otp.Service
	sender        notifier.Sender
	recorder      audit.Recorder
	contactRepo   scylla.ContactRepositoryInterface
	appRepo       scylla.ApplicationRepositoryInterface
	indexer       es.SubmissionIndexerInterface
	encryptionMgr *encryption.Manager
	logger        *zap.Logger

	verificationService *VerificationService
	contactService      *ContactService
	applicationService  *ApplicationService
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(
	limiter *ratelimit.Limiter,
	codes *otp.Service,
	sender notifier.Sender,
	recorder audit.Recorder,
	contactRepo scylla.ContactRepositoryInterface,
	appRepo scylla.ApplicationRepositoryInterface,
	indexer es.SubmissionIndexerInterface,
	encryptionMgr *encryption.Manager,
	logger *zap.Logger,
) *ServiceFactory {
	return &ServiceFactory{
		limiter:       limiter,
		codes:         codes,
		sender:        sender,
		recorder:      recorder,
		contactRepo:   contactRepo,
		appRepo:       appRepo,
		indexer:       indexer,
		encryptionMgr: encryptionMgr,
		logger:        logger,
	}
}

// VerificationService returns the verification service instance (singleton)
func (f *ServiceFactory) VerificationService() *VerificationService {
	if f.verificationService == nil {
		f.verificationService = NewVerificationService(
			f.limiter,
			f.codes,
			f.sender,
			f.recorder,
			f.logger,
		)
	}
	return f.verificationService
}

// ContactService returns the contact service instance (singleton)
func (f *ServiceFactory) ContactService() *ContactService {
	if f.contactService == nil {
		f.contactService = NewContactService(
			f.contactRepo,
			f.indexer,
			f.encryptionMgr,
			f.recorder,
			f.logger,
		)
	}
	return f.contactService
}

// ApplicationService returns the application service instance (singleton)
func (f *ServiceFactory) ApplicationService() *ApplicationService {
	if f.applicationService == nil {
		f.applicationService = NewApplicationService(
			f.appRepo,
			f.encryptionMgr,
			f.recorder,
			f.logger,
		)
	}
	return f.applicationService
}
