package scylla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"verification-service/internal/config"
	"verification-service/internal/util"
)

// PreparedStatements holds the statements the repositories execute on the
// hot path.
type PreparedStatements struct {
	CreateSubmission     *gocql.Query
	GetSubmissionByID    *gocql.Query
	ListSubmissionsByDay *gocql.Query
	MarkSubmissionStatus *gocql.Query

	CreateApplication       *gocql.Query
	GetApplicationByID      *gocql.Query
	CreateApplicationLookup *gocql.Query
	GetApplicationLookup    *gocql.Query
	ListByStatus            *gocql.Query
	DeleteApplication       *gocql.Query
	UpdateApplicationLookup *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 1000
	cluster.MaxRoutingKeyInfo = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if !cfg.IsDevelopment() {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 "/root/certs/ca.pem",
			CertPath:               "/root/certs/server.pem",
			KeyPath:                "/root/certs/server.key",
			EnableHostVerification: true,
		}
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.CreateSubmission = s.Session.Query(`
        INSERT INTO contact_submissions (
            submission_date, id, name, company, email_hash, email_encrypted,
            email_key_id, message, status, created_at, responded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.GetSubmissionByID = s.Session.Query(`
        SELECT submission_date, id, name, company, email_hash, email_encrypted,
            email_key_id, message, status, created_at, responded_at
        FROM contact_submissions WHERE submission_date = ? AND id = ?`)

	prepared.ListSubmissionsByDay = s.Session.Query(`
        SELECT submission_date, id, name, company, email_hash, email_encrypted,
            email_key_id, message, status, created_at, responded_at
        FROM contact_submissions WHERE submission_date = ?`)

	prepared.MarkSubmissionStatus = s.Session.Query(`
        UPDATE contact_submissions SET status = ?, responded_at = ?
        WHERE submission_date = ? AND id = ?`)

	prepared.CreateApplication = s.Session.Query(`
        INSERT INTO trade_finance_applications (
            status, id, company_name, country, instrument, amount, currency,
            email_hash, email_encrypted, email_key_id, notes, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.CreateApplicationLookup = s.Session.Query(`
        INSERT INTO application_by_id (id, status, created_at)
        VALUES (?, ?, ?)`)

	prepared.GetApplicationLookup = s.Session.Query(`
        SELECT status FROM application_by_id WHERE id = ?`)

	prepared.GetApplicationByID = s.Session.Query(`
        SELECT status, id, company_name, country, instrument, amount, currency,
            email_hash, email_encrypted, email_key_id, notes, created_at, updated_at
        FROM trade_finance_applications WHERE status = ? AND id = ?`)

	prepared.ListByStatus = s.Session.Query(`
        SELECT status, id, company_name, country, instrument, amount, currency,
            email_hash, email_encrypted, email_key_id, notes, created_at, updated_at
        FROM trade_finance_applications WHERE status = ?`)

	prepared.DeleteApplication = s.Session.Query(`
        DELETE FROM trade_finance_applications WHERE status = ? AND id = ?`)

	prepared.UpdateApplicationLookup = s.Session.Query(`
        UPDATE application_by_id SET status = ? WHERE id = ?`)

	s.Prepared = prepared
	s.isPrepared = true

	util.Info("ScyllaDB prepared statements created successfully")
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) Batch(typ gocql.BatchType) *gocql.Batch {
	return s.Session.NewBatch(typ)
}

func (s *ScyllaClient) ExecuteBatch(batch *gocql.Batch) error {
	return s.Session.ExecuteBatch(batch)
}

func (s *ScyllaClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

func (s *ScyllaClient) ScanWithRetry(query *gocql.Query, dest ...interface{}) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if err := query.Scan(dest...); err != nil {
			lastErr = err
			if err == gocql.ErrNotFound {
				return err
			}
			if i < 2 {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}

func (s *ScyllaClient) ExecuteWithRetry(query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := query.Exec(); err != nil {
			lastErr = err
			if i < maxRetries {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}
