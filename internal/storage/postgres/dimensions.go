package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/juspay/airborne/internal/domain"
)

// DimensionStore implements storage.DimensionStore against
// `dimensions` and `cohort_definitions`.
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
	_, err = s.conn.Exec(ctx, `
		INSERT INTO dimensions (org, app, name, position, schema, type, depends_on, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.Org, d.App, d.Name, d.Position, schema, d.Type, d.DependsOn, d.Description)
	return err
}

func (s *DimensionStore) Get(ctx context.Context, org, app, name string) (*domain.Dimension, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT org, app, name, position, schema, type, depends_on, description
		FROM dimensions WHERE org=$1 AND app=$2 AND name=$3`, org, app, name)
	return scanDimension(row)
}

func (s *DimensionStore) List(ctx context.Context, org, app string) ([]*domain.Dimension, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT org, app, name, position, schema, type, depends_on, description
		FROM dimensions WHERE org=$1 AND app=$2 ORDER BY position ASC`, org, app)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Dimension
	for rows.Next() {
		d, err := scanDimensionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DimensionStore) Delete(ctx context.Context, org, app, name string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM dimensions WHERE org=$1 AND app=$2 AND name=$3`, org, app, name)
	return err
}

// UpdatePositions rewrites positions for the named dimensions. Callers
// (internal/dimension) are responsible for ensuring the resulting order
// remains a contiguous total order before calling this.
func (s *DimensionStore) UpdatePositions(ctx context.Context, org, app string, positions map[string]int) error {
	for name, pos := range positions {
		if _, err := s.conn.Exec(ctx, `
			UPDATE dimensions SET position=$1 WHERE org=$2 AND app=$3 AND name=$4`, pos, org, app, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *DimensionStore) IsReferencedByLiveExperiment(ctx context.Context, org, app, name string) (bool, error) {
	var count int
	err := s.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM releases
		WHERE org=$1 AND app=$2 AND status IN ('Created','InProgress')
		  AND dimension_context ? $3`, org, app, name).Scan(&count)
	return count > 0, err
}

func (s *DimensionStore) PutCohortSet(ctx context.Context, org, app string, set *domain.CohortSet) error {
	defs, err := json.Marshal(set.Definitions)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO cohort_definitions (org, app, dimension_name, depends_on, enum, definitions)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (org, app, dimension_name) DO UPDATE
		SET depends_on=EXCLUDED.depends_on, enum=EXCLUDED.enum, definitions=EXCLUDED.definitions`,
		org, app, set.DimensionName, set.DependsOn, set.Enum, defs)
	return err
}

func (s *DimensionStore) GetCohortSet(ctx context.Context, org, app, dimensionName string) (*domain.CohortSet, error) {
	var set domain.CohortSet
	var defs []byte
	err := s.conn.QueryRow(ctx, `
		SELECT dimension_name, depends_on, enum, definitions
		FROM cohort_definitions WHERE org=$1 AND app=$2 AND dimension_name=$3`,
		org, app, dimensionName).Scan(&set.DimensionName, &set.DependsOn, &set.Enum, &defs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDimensionNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(defs, &set.Definitions); err != nil {
		return nil, err
	}
	return &set, nil
}

func scanDimension(row pgx.Row) (*domain.Dimension, error) {
	var d domain.Dimension
	var schema []byte
	err := row.Scan(&d.Org, &d.App, &d.Name, &d.Position, &schema, &d.Type, &d.DependsOn, &d.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDimensionNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(schema, &d.Schema); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDimensionRows(rows pgx.Rows) (*domain.Dimension, error) {
	var d domain.Dimension
	var schema []byte
	err := rows.Scan(&d.Org, &d.App, &d.Name, &d.Position, &schema, &d.Type, &d.DependsOn, &d.Description)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(schema, &d.Schema); err != nil {
		return nil, err
	}
	return &d, nil
}
