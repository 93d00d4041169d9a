package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/juspay/airborne/internal/domain"
)

// DimensionStore implements storage.DimensionStore against `dimensions`
// and `cohort_definitions`.
type DimensionStore struct {
	conn Conn
}

// NewDimensionStore builds a DimensionStore over conn.
func NewDimensionStore(conn Conn) *DimensionStore {
	return &DimensionStore{conn: conn}
}

func (s *DimensionStore) Insert(ctx context.Context, d *domain.Dimension) error {
	schema, err := json.Marshal(d.Schema)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO dimensions (org, app, name, position, schema, type, depends_on, description)
		VALUES (?,?,?,?,?,?,?,?)`,
		d.Org, d.App, d.Name, d.Position, string(schema), d.Type, d.DependsOn, d.Description)
	return err
}

func (s *DimensionStore) Get(ctx context.Context, org, app, name string) (*domain.Dimension, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT org, app, name, position, schema, type, depends_on, description
		FROM dimensions WHERE org=? AND app=? AND name=?`, org, app, name)
	return scanDimension(row)
}

func (s *DimensionStore) List(ctx context.Context, org, app string) ([]*domain.Dimension, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT org, app, name, position, schema, type, depends_on, description
		FROM dimensions WHERE org=? AND app=? ORDER BY position ASC`, org, app)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Dimension
	for rows.Next() {
		d, err := scanDimension(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DimensionStore) Delete(ctx context.Context, org, app, name string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM dimensions WHERE org=? AND app=? AND name=?`, org, app, name)
	return err
}

// UpdatePositions rewrites positions for the named dimensions. Callers
// (internal/dimension) are responsible for ensuring the resulting order
// remains a contiguous total order before calling this.
func (s *DimensionStore) UpdatePositions(ctx context.Context, org, app string, positions map[string]int) error {
	for name, pos := range positions {
		if _, err := s.conn.ExecContext(ctx, `
			UPDATE dimensions SET position=? WHERE org=? AND app=? AND name=?`, pos, org, app, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *DimensionStore) IsReferencedByLiveExperiment(ctx context.Context, org, app, name string) (bool, error) {
	var count int
	// SQLite json_each walks the dimension_context object's top-level
	// keys; no native "?" jsonb key-exists operator as in Postgres.
	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM releases, json_each(releases.dimension_context)
		WHERE releases.org=? AND releases.app=? AND releases.status IN ('Created','InProgress')
		  AND json_each.key=?`, org, app, name).Scan(&count)
	return count > 0, err
}

func (s *DimensionStore) PutCohortSet(ctx context.Context, org, app string, set *domain.CohortSet) error {
	defs, err := json.Marshal(set.Definitions)
	if err != nil {
		return err
	}
	enum, err := json.Marshal(set.Enum)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO cohort_definitions (org, app, dimension_name, depends_on, enum, definitions)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT (org, app, dimension_name) DO UPDATE
		SET depends_on=excluded.depends_on, enum=excluded.enum, definitions=excluded.definitions`,
		org, app, set.DimensionName, set.DependsOn, string(enum), string(defs))
	return err
}

func (s *DimensionStore) GetCohortSet(ctx context.Context, org, app, dimensionName string) (*domain.CohortSet, error) {
	var set domain.CohortSet
	var enum, defs string
	err := s.conn.QueryRowContext(ctx, `
		SELECT dimension_name, depends_on, enum, definitions
		FROM cohort_definitions WHERE org=? AND app=? AND dimension_name=?`,
		org, app, dimensionName).Scan(&set.DimensionName, &set.DependsOn, &enum, &defs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDimensionNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(enum), &set.Enum); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(defs), &set.Definitions); err != nil {
		return nil, err
	}
	return &set, nil
}

func scanDimension(row fileScanner) (*domain.Dimension, error) {
	var d domain.Dimension
	var schema string
	err := row.Scan(&d.Org, &d.App, &d.Name, &d.Position, &schema, &d.Type, &d.DependsOn, &d.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDimensionNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(schema), &d.Schema); err != nil {
		return nil, err
	}
	return &d, nil
}
