package sqlite

import (
	"context"
	"encoding/json"

	"github.com/juspay/airborne/internal/domain"
)

// PropertySchemaStore implements storage.PropertySchemaStore against
// `application_settings`.
type PropertySchemaStore struct {
	conn Conn
}

// NewPropertySchemaStore builds a PropertySchemaStore over conn.
func NewPropertySchemaStore(conn Conn) *PropertySchemaStore {
	return &PropertySchemaStore{conn: conn}
}

func (s *PropertySchemaStore) Keys(ctx context.Context, org, app string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT key FROM application_settings WHERE org=? AND app=?`, org, app)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *PropertySchemaStore) Upsert(ctx context.Context, org, app string, entries map[string]domain.PropertySchemaEntry) error {
	for key, entry := range entries {
		def, err := json.Marshal(entry.Default.ToAny())
		if err != nil {
			return err
		}
		schema, err := json.Marshal(entry.JSONSchema.ToAny())
		if err != nil {
			return err
		}
		_, err = s.conn.ExecContext(ctx, `
			INSERT INTO application_settings (org, app, key, description, default_value, json_schema)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT (org, app, key) DO UPDATE
			SET description=excluded.description, default_value=excluded.default_value, json_schema=excluded.json_schema`,
			org, app, key, entry.Description, string(def), string(schema))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PropertySchemaStore) Delete(ctx context.Context, org, app string, keys []string) error {
	for _, key := range keys {
		if _, err := s.conn.ExecContext(ctx, `
			DELETE FROM application_settings WHERE org=? AND app=? AND key=?`, org, app, key); err != nil {
			return err
		}
	}
	return nil
}
