package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/juspay/airborne/internal/domain"
)

// ReleaseStore implements storage.ReleaseStore against `releases`.
type ReleaseStore struct {
	conn Conn
}

// NewReleaseStore builds a ReleaseStore over conn.
func NewReleaseStore(conn Conn) *ReleaseStore {
	return &ReleaseStore{conn: conn}
}

func (s *ReleaseStore) Insert(ctx context.Context, r *domain.Release) error {
	dimCtx, err := json.Marshal(r.DimensionContext)
	if err != nil {
		return err
	}
	control, err := json.Marshal(r.ControlOverrides)
	if err != nil {
		return err
	}
	experiment, err := json.Marshal(r.ExperimentOverrides)
	if err != nil {
		return err
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO releases (id, org, app, package_version, config_version, dimension_context,
			control_overrides, experiment_overrides, traffic_percentage, status, chosen_variant, experiment_id, created_at, created_by)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID.String(), r.Org, r.App, r.PackageVersion, r.ConfigVersion, string(dimCtx),
		string(control), string(experiment), r.TrafficPercentage, r.Status, r.ChosenVariant, r.ExperimentID, r.CreatedAt.UnixMilli(), r.CreatedBy)
	return err
}

func (s *ReleaseStore) Get(ctx context.Context, org, app string, id uuid.UUID) (*domain.Release, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT `+releaseColumns+` FROM releases WHERE org=? AND app=? AND id=?`, org, app, id.String())
	return scanRelease(row)
}

func (s *ReleaseStore) Update(ctx context.Context, r *domain.Release) error {
	control, err := json.Marshal(r.ControlOverrides)
	if err != nil {
		return err
	}
	experiment, err := json.Marshal(r.ExperimentOverrides)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		UPDATE releases SET traffic_percentage=?, status=?, chosen_variant=?,
			control_overrides=?, experiment_overrides=?, experiment_id=?
		WHERE org=? AND app=? AND id=?`,
		r.TrafficPercentage, r.Status, r.ChosenVariant, string(control), string(experiment), r.ExperimentID, r.Org, r.App, r.ID.String())
	return err
}

func (s *ReleaseStore) ListActiveForDimensionContext(ctx context.Context, org, app string) ([]*domain.Release, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+releaseColumns+` FROM releases
		WHERE org=? AND app=? AND status IN ('Created','InProgress')`, org, app)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Release
	for rows.Next() {
		r, err := scanReleaseRaw(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const releaseColumns = `id, org, app, package_version, config_version, dimension_context,
	control_overrides, experiment_overrides, traffic_percentage, status, chosen_variant, experiment_id, created_at, created_by`

func scanRelease(row fileScanner) (*domain.Release, error) {
	r, err := scanReleaseRaw(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReleaseNotFound
		}
		return nil, err
	}
	return r, nil
}

func scanReleaseRaw(row fileScanner) (*domain.Release, error) {
	var r domain.Release
	var id string
	var dimCtx, control, experiment string
	var createdAt int64
	err := row.Scan(&id, &r.Org, &r.App, &r.PackageVersion, &r.ConfigVersion, &dimCtx,
		&control, &experiment, &r.TrafficPercentage, &r.Status, &r.ChosenVariant, &r.ExperimentID, &createdAt, &r.CreatedBy)
	if err != nil {
		return nil, err
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	if err := json.Unmarshal([]byte(dimCtx), &r.DimensionContext); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(control), &r.ControlOverrides); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(experiment), &r.ExperimentOverrides); err != nil {
		return nil, err
	}
	return &r, nil
}
