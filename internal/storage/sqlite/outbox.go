package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/juspay/airborne/internal/domain"
)

// OutboxStore implements storage.OutboxStore against `cleanup_outbox`.
// No retry backoff is applied here or in internal/outbox; ClaimBatch
// returns every row in creation order.
type OutboxStore struct {
	conn Conn
}

// NewOutboxStore builds an OutboxStore over conn.
func NewOutboxStore(conn Conn) *OutboxStore {
	return &OutboxStore{conn: conn}
}

func (s *OutboxStore) Enqueue(ctx context.Context, row *domain.OutboxRow) error {
	state, err := json.Marshal(row.State.ToAny())
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO cleanup_outbox (transaction_id, entity_name, entity_type, state, created_at, attempts, last_attempt)
		VALUES (?,?,?,?,?,0,NULL)
		ON CONFLICT (transaction_id, entity_name, entity_type) DO NOTHING`,
		row.TransactionID, row.EntityName, row.EntityType, string(state), row.CreatedAt.UnixMilli())
	return err
}

func (s *OutboxStore) ClaimBatch(ctx context.Context, limit int) ([]*domain.OutboxRow, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT transaction_id, entity_name, entity_type, state, created_at, attempts, last_attempt
		FROM cleanup_outbox
		ORDER BY created_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.OutboxRow
	for rows.Next() {
		var r domain.OutboxRow
		var state string
		var createdAt int64
		var lastAttempt sql.NullInt64
		if err := rows.Scan(&r.TransactionID, &r.EntityName, &r.EntityType, &state, &createdAt, &r.Attempts, &lastAttempt); err != nil {
			return nil, err
		}
		doc, err := decodeState([]byte(state))
		if err != nil {
			return nil, err
		}
		r.State = doc
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		if lastAttempt.Valid {
			t := time.UnixMilli(lastAttempt.Int64).UTC()
			r.LastAttempt = &t
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *OutboxStore) MarkAttempt(ctx context.Context, transactionID, entityType, entityName string, attempts int, lastAttempt bool) error {
	var lastAttemptArg interface{}
	if lastAttempt {
		lastAttemptArg = time.Now().UTC().UnixMilli()
	}
	_, err := s.conn.ExecContext(ctx, `
		UPDATE cleanup_outbox SET attempts=?, last_attempt=?
		WHERE transaction_id=? AND entity_type=? AND entity_name=?`,
		attempts, lastAttemptArg, transactionID, entityType, entityName)
	return err
}

func (s *OutboxStore) Delete(ctx context.Context, transactionID, entityType, entityName string) error {
	_, err := s.conn.ExecContext(ctx, `
		DELETE FROM cleanup_outbox WHERE transaction_id=? AND entity_type=? AND entity_name=?`,
		transactionID, entityType, entityName)
	return err
}

func decodeState(raw []byte) (domain.Document, error) {
	var d domain.Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return domain.Document{}, err
	}
	return d, nil
}
