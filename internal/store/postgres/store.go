// Package postgres implements the persistence gateway for agencies, clients
// and plans.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planform/planform/internal/plan"
)

// Config controls the connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbConn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Store is the pgx-backed plan.Store implementation.
type Store struct {
	pool dbConn
}

// New connects a pool from config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing with pgxmock).
func NewWithPool(pool dbConn) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// AgencyByAPIKey loads the agency matching the key together with its active
// service catalog, in stable id order.
func (s *Store) AgencyByAPIKey(ctx context.Context, apiKey string) (plan.Agency, error) {
	var agency plan.Agency
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, api_key, COALESCE(description, '')
		 FROM agencies WHERE api_key = $1`,
		apiKey,
	).Scan(&agency.ID, &agency.Name, &agency.APIKey, &agency.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return plan.Agency{}, plan.ErrAgencyNotFound
		}
		return plan.Agency{}, fmt.Errorf("query agency: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, service_id, name, description, outcomes,
		        COALESCE(price_lower, 0), COALESCE(price_upper, 0),
		        when_to_recommend, is_active
		 FROM services WHERE agency_id = $1 AND is_active ORDER BY id`,
		agency.ID,
	)
	if err != nil {
		return plan.Agency{}, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			svc          plan.Service
			outcomesJSON []byte
			whenToJSON   []byte
		)
		if err := rows.Scan(
			&svc.ID, &svc.ServiceID, &svc.Name, &svc.Description,
			&outcomesJSON, &svc.PriceLower, &svc.PriceUpper,
			&whenToJSON, &svc.Active,
		); err != nil {
			return plan.Agency{}, fmt.Errorf("scan service: %w", err)
		}
		if err := json.Unmarshal(outcomesJSON, &svc.Outcomes); err != nil {
			return plan.Agency{}, fmt.Errorf("decode service outcomes: %w", err)
		}
		if err := json.Unmarshal(whenToJSON, &svc.WhenToRecommend); err != nil {
			return plan.Agency{}, fmt.Errorf("decode service when_to_recommend: %w", err)
		}
		agency.Services = append(agency.Services, svc)
	}
	if err := rows.Err(); err != nil {
		return plan.Agency{}, fmt.Errorf("iterate services: %w", err)
	}
	return agency, nil
}

// ClientByEmail looks up a client scoped to an agency.
func (s *Store) ClientByEmail(ctx context.Context, agencyID int64, email string) (plan.Client, error) {
	var client plan.Client
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, COALESCE(name, ''), COALESCE(website_url, ''), agency_id
		 FROM clients WHERE email = $1 AND agency_id = $2`,
		email, agencyID,
	).Scan(&client.ID, &client.Email, &client.Name, &client.WebsiteURL, &client.AgencyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return plan.Client{}, plan.ErrClientNotFound
		}
		return plan.Client{}, fmt.Errorf("query client: %w", err)
	}
	return client, nil
}

// CreateClient inserts a new client row and returns it with its id.
func (s *Store) CreateClient(ctx context.Context, client plan.Client) (plan.Client, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO clients (email, name, website_url, agency_id)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		client.Email, client.Name, client.WebsiteURL, client.AgencyID,
	).Scan(&client.ID)
	if err != nil {
		return plan.Client{}, fmt.Errorf("insert client: %w", err)
	}
	return client, nil
}

// CreatePlan stores the assembled plan payload as JSON and returns the new
// plan id.
func (s *Store) CreatePlan(ctx context.Context, agencyID, clientID int64, payload plan.Payload) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal plan payload: %w", err)
	}
	var planID int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO plans (client_id, agency_id, plan_data)
		 VALUES ($1, $2, $3) RETURNING id`,
		clientID, agencyID, data,
	).Scan(&planID)
	if err != nil {
		return 0, fmt.Errorf("insert plan: %w", err)
	}
	return planID, nil
}
