package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// configStorePG persists configurations as JSONB documents keyed by id.
// Steps, transitions, and permissions are a single document because they are
// always read and written together.
type configStorePG struct{ pool *pgxpool.Pool }

func NewConfigStorePG(pool *pgxpool.Pool) ConfigStore {
	return &configStorePG{pool: pool}
}

func (s *configStorePG) Get(ctx context.Context, workflowID string) (*Configuration, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `
		SELECT definition FROM workflow_configuration WHERE id = $1`, workflowID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Resource: "workflow", ID: workflowID}
	}
	if err != nil {
		return nil, err
	}
	var cfg Configuration
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", workflowID, err)
	}
	return &cfg, nil
}

func (s *configStorePG) ListActive(ctx context.Context) ([]*Configuration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT definition FROM workflow_configuration WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Configuration
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var cfg Configuration
		if err := json.Unmarshal(doc, &cfg); err != nil {
			return nil, fmt.Errorf("decode workflow configuration: %w", err)
		}
		out = append(out, &cfg)
	}
	return out, rows.Err()
}

func (s *configStorePG) Save(ctx context.Context, cfg *Configuration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	existing, err := s.Get(ctx, cfg.ID)
	var nf *NotFoundError
	switch {
	case err == nil:
		cfg.CreatedAt = existing.CreatedAt
		cfg.Version = existing.Version + 1
	case errors.As(err, &nf):
		if cfg.Version == 0 {
			cfg.Version = 1
		}
	default:
		return err
	}

	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode workflow %s: %w", cfg.ID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO workflow_configuration (id, name, version, active, definition, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			active = EXCLUDED.active,
			definition = EXCLUDED.definition,
			updated_at = EXCLUDED.updated_at`,
		cfg.ID, cfg.Name, cfg.Version, cfg.Active, doc, cfg.CreatedAt, cfg.UpdatedAt)
	return err
}

func (s *configStorePG) Delete(ctx context.Context, workflowID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM workflow_configuration WHERE id = $1`, workflowID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
