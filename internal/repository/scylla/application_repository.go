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

// ApplicationRepositoryInterface abstracts trade-finance application
// persistence.
type ApplicationRepositoryInterface interface {
	CreateApplication(app *models.TradeFinanceApplication) error
	GetApplicationByID(id string) (*models.TradeFinanceApplication, error)
	ListApplicationsByStatus(status string, pageState []byte, pageSize int) ([]*models.TradeFinanceApplication, []byte, error)
	UpdateApplicationStatus(id, newStatus string) error
}

// ApplicationRepository stores applications partitioned by status, with an
// application_by_id lookup table resolving an ID to its current partition.
type ApplicationRepository struct {
	client *ScyllaClient
}

func NewApplicationRepository(client *ScyllaClient, logger *zap.Logger) *ApplicationRepository {
	return &ApplicationRepository{client: client}
}

func (r *ApplicationRepository) CreateApplication(app *models.TradeFinanceApplication) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	app.CreatedAt = now
	if app.Status == "" {
		app.Status = models.ApplicationStatusReceived
	}

	batch := r.client.Session.NewBatch(gocql.LoggedBatch)

	batch.Query(r.client.Prepared.CreateApplication.Statement(),
		app.Status, app.ID, app.CompanyName, app.Country, app.Instrument,
		app.Amount, app.Currency, app.EmailHash, app.EmailEncrypted,
		app.EmailKeyID, app.Notes, app.CreatedAt, app.UpdatedAt)

	batch.Query(r.client.Prepared.CreateApplicationLookup.Statement(),
		app.ID, app.Status, app.CreatedAt)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create application",
			zap.String("id", app.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create application: %w", err)
	}

	util.Info("Application created",
		zap.String("id", app.ID),
		zap.String("instrument", app.Instrument))

	return nil
}

func (r *ApplicationRepository) GetApplicationByID(id string) (*models.TradeFinanceApplication, error) {
	status, err := r.lookupStatus(id)
	if err != nil {
		return nil, err
	}
	return r.getFromPartition(status, id)
}

func (r *ApplicationRepository) lookupStatus(id string) (string, error) {
	var status string

	query := r.client.Prepared.GetApplicationLookup.Bind(id)
	if err := r.client.ScanWithRetry(query, &status); err != nil {
		if err == gocql.ErrNotFound {
			return "", fmt.Errorf("application not found with ID: %s", id)
		}
		return "", fmt.Errorf("failed to look up application: %w", err)
	}

	return status, nil
}

func (r *ApplicationRepository) getFromPartition(status, id string) (*models.TradeFinanceApplication, error) {
	app := &models.TradeFinanceApplication{}

	query := r.client.Prepared.GetApplicationByID.Bind(status, id)

	err := r.client.ScanWithRetry(query,
		&app.Status, &app.ID, &app.CompanyName, &app.Country, &app.Instrument,
		&app.Amount, &app.Currency, &app.EmailHash, &app.EmailEncrypted,
		&app.EmailKeyID, &app.Notes, &app.CreatedAt, &app.UpdatedAt)

	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, fmt.Errorf("application not found with ID: %s", id)
		}
		util.Error("Failed to get application",
			zap.String("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	return app, nil
}

func (r *ApplicationRepository) ListApplicationsByStatus(status string, pageState []byte, pageSize int) ([]*models.TradeFinanceApplication, []byte, error) {
	query := r.client.Prepared.ListByStatus.Bind(status).
		PageSize(pageSize).
		PageState(pageState)

	iter := query.Iter()

	var apps []*models.TradeFinanceApplication
	for {
		app := &models.TradeFinanceApplication{}
		if !iter.Scan(
			&app.Status, &app.ID, &app.CompanyName, &app.Country, &app.Instrument,
			&app.Amount, &app.Currency, &app.EmailHash, &app.EmailEncrypted,
			&app.EmailKeyID, &app.Notes, &app.CreatedAt, &app.UpdatedAt) {
			break
		}
		apps = append(apps, app)
	}

	nextPageState := iter.PageState()
	if err := iter.Close(); err != nil {
		util.Error("Failed to list applications",
			zap.String("status", status),
			zap.Error(err))
		return nil, nil, fmt.Errorf("failed to list applications: %w", err)
	}

	return apps, nextPageState, nil
}

// UpdateApplicationStatus moves an application to a new status partition:
// the row is rewritten under the new status and deleted from the old one,
// with the lookup row updated in the same logged batch.
func (r *ApplicationRepository) UpdateApplicationStatus(id, newStatus string) error {
	app, err := r.GetApplicationByID(id)
	if err != nil {
		return err
	}

	oldStatus := app.Status
	if oldStatus == newStatus {
		return nil
	}

	now := time.Now().UTC()
	app.Status = newStatus
	app.UpdatedAt = &now

	batch := r.client.Session.NewBatch(gocql.LoggedBatch)

	batch.Query(r.client.Prepared.CreateApplication.Statement(),
		app.Status, app.ID, app.CompanyName, app.Country, app.Instrument,
		app.Amount, app.Currency, app.EmailHash, app.EmailEncrypted,
		app.EmailKeyID, app.Notes, app.CreatedAt, app.UpdatedAt)

	batch.Query(r.client.Prepared.DeleteApplication.Statement(),
		oldStatus, app.ID)

	batch.Query(r.client.Prepared.UpdateApplicationLookup.Statement(),
		newStatus, app.ID)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to update application status",
			zap.String("id", id),
			zap.String("old_status", oldStatus),
			zap.String("new_status", newStatus),
			zap.Error(err))
		return fmt.Errorf("failed to update application status: %w", err)
	}

	util.Info("Application status updated",
		zap.String("id", id),
		zap.String("old_status", oldStatus),
		zap.String("new_status", newStatus))

	return nil
}
