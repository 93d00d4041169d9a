package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

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

	_, err = s.conn.Exec(ctx, `
		INSERT INTO releases (id, org, app, package_version, config_version, dimension_context,
			control_overrides, experiment_overrides, traffic_percentage, status, chosen_variant, experiment_id, created_at, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		r.ID, r.Org, r.App, r.PackageVersion, r.ConfigVersion, dimCtx,
		control, experiment, r.TrafficPercentage, r.Status, r.ChosenVariant, r.ExperimentID, r.CreatedAt, r.CreatedBy)
	return err
}

func (s *ReleaseStore) Get(ctx context.Context, org, app string, id uuid.UUID) (*domain.Release, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+releaseColumns+` FROM releases WHERE org=$1 AND app=$2 AND id=$3`, org, app, id)
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
	_, err = s.conn.Exec(ctx, `
		UPDATE releases SET traffic_percentage=$1, status=$2, chosen_variant=$3,
			control_overrides=$4, experiment_overrides=$5, experiment_id=$6
		WHERE org=$7 AND app=$8 AND id=$9`,
		r.TrafficPercentage, r.Status, r.ChosenVariant, control, experiment, r.ExperimentID, r.Org, r.App, r.ID)
	return err
}

func (s *ReleaseStore) ListActiveForDimensionContext(ctx context.Context, org, app string) ([]*domain.Release, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+releaseColumns+` FROM releases
		WHERE org=$1 AND app=$2 AND status IN ('Created','InProgress')`, org, app)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Release
	for rows.Next() {
		r, err := scanReleaseRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const releaseColumns = `id, org, app, package_version, config_version, dimension_context,
	control_overrides, experiment_overrides, traffic_percentage, status, chosen_variant, experiment_id, created_at, created_by`

func scanRelease(row pgx.Row) (*domain.Release, error) {
	var r domain.Release
	var dimCtx, control, experiment []byte
	err := row.Scan(&r.ID, &r.Org, &r.App, &r.PackageVersion, &r.ConfigVersion, &dimCtx,
		&control, &experiment, &r.TrafficPercentage, &r.Status, &r.ChosenVariant, &r.ExperimentID, &r.CreatedAt, &r.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReleaseNotFound
		}
		return nil, err
	}
	return unmarshalRelease(&r, dimCtx, control, experiment)
}

func scanReleaseRows(rows pgx.Rows) (*domain.Release, error) {
	var r domain.Release
	var dimCtx, control, experiment []byte
	err := rows.Scan(&r.ID, &r.Org, &r.App, &r.PackageVersion, &r.ConfigVersion, &dimCtx,
		&control, &experiment, &r.TrafficPercentage, &r.Status, &r.ChosenVariant, &r.ExperimentID, &r.CreatedAt, &r.CreatedBy)
	if err != nil {
		return nil, err
	}
	return unmarshalRelease(&r, dimCtx, control, experiment)
}

func unmarshalRelease(r *domain.Release, dimCtx, control, experiment []byte) (*domain.Release, error) {
	if err := json.Unmarshal(dimCtx, &r.DimensionContext); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(control, &r.ControlOverrides); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(experiment, &r.ExperimentOverrides); err != nil {
		return nil, err
	}
	return r, nil
}
