package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct{ pool *pgxpool.Pool }

// NewPGStore creates a Store backed by the notification table.
func NewPGStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const notificationCols = `id, proposal_id, recipient, channel, priority, status, template_id, subject, body, payload, created_at, sent_at, read_at, error_detail`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	var payload []byte
	err := row.Scan(&n.ID, &n.ProposalID, &n.Recipient, &n.Channel, &n.Priority,
		&n.Status, &n.TemplateID, &n.Subject, &n.Body, &payload,
		&n.CreatedAt, &n.SentAt, &n.ReadAt, &n.Error)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("decode notification payload: %w", err)
		}
	}
	return &n, nil
}

func encodePayload(n *Notification) ([]byte, error) {
	if n.Payload == nil {
		return nil, nil
	}
	b, err := json.Marshal(n.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode notification payload: %w", err)
	}
	return b, nil
}

func (s *pgStore) Insert(ctx context.Context, n *Notification) error {
	payload, err := encodePayload(n)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO notification (id, proposal_id, recipient, channel, priority, status, template_id, subject, body, payload, created_at, sent_at, read_at, error_detail)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		n.ID, n.ProposalID, n.Recipient, n.Channel, n.Priority, n.Status,
		n.TemplateID, n.Subject, n.Body, payload, n.CreatedAt, n.SentAt, n.ReadAt, n.Error)
	return err
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx, `
		SELECT `+notificationCols+` FROM notification WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return n, err
}

func (s *pgStore) Update(ctx context.Context, n *Notification) error {
	payload, err := encodePayload(n)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification
		SET status = $2, payload = $3, sent_at = $4, read_at = $5, error_detail = $6
		WHERE id = $1`,
		n.ID, n.Status, payload, n.SentAt, n.ReadAt, n.Error)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %q not found", n.ID)
	}
	return nil
}

func (s *pgStore) ListByRecipient(ctx context.Context, recipient string, limit int) ([]*Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+notificationCols+` FROM notification
		WHERE recipient = $1 ORDER BY created_at, id LIMIT $2`, recipient, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *pgStore) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM notification GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
