package postgres

import (
	"context"
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
	_, err = s.conn.Exec(ctx, `
		INSERT INTO cleanup_outbox (transaction_id, entity_name, entity_type, state, created_at, attempts, last_attempt)
		VALUES ($1,$2,$3,$4,$5,0,NULL)
		ON CONFLICT (transaction_id, entity_name, entity_type) DO NOTHING`,
		row.TransactionID, row.EntityName, row.EntityType, state, row.CreatedAt)
	return err
}

func (s *OutboxStore) ClaimBatch(ctx context.Context, limit int) ([]*domain.OutboxRow, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT transaction_id, entity_name, entity_type, state, created_at, attempts, last_attempt
		FROM cleanup_outbox
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.OutboxRow
	for rows.Next() {
		var r domain.OutboxRow
		var state []byte
		if err := rows.Scan(&r.TransactionID, &r.EntityName, &r.EntityType, &state, &r.CreatedAt, &r.Attempts, &r.LastAttempt); err != nil {
			return nil, err
		}
		doc, err := decodeState(state)
		if err != nil {
			return nil, err
		}
		r.State = doc
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *OutboxStore) MarkAttempt(ctx context.Context, transactionID, entityType, entityName string, attempts int, lastAttempt bool) error {
	var lastAttemptArg interface{}
	if lastAttempt {
		lastAttemptArg = time.Now().UTC()
	}
	_, err := s.conn.Exec(ctx, `
		UPDATE cleanup_outbox SET attempts=$1, last_attempt=$2
		WHERE transaction_id=$3 AND entity_type=$4 AND entity_name=$5`,
		attempts, lastAttemptArg, transactionID, entityType, entityName)
	return err
}

func (s *OutboxStore) Delete(ctx context.Context, transactionID, entityType, entityName string) error {
	_, err := s.conn.Exec(ctx, `
		DELETE FROM cleanup_outbox WHERE transaction_id=$1 AND entity_type=$2 AND entity_name=$3`,
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
