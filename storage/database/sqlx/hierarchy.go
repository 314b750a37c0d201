package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/hierarchy"
)

type hierarchyRepository struct {
	db *sqlx.DB
}

var _ hierarchy.Repository = (*hierarchyRepository)(nil) // interface compliance check

func NewHierarchyRepository(db *sqlx.DB) *hierarchyRepository {
	return &hierarchyRepository{db: db}
}

func (repo hierarchyRepository) ext(exec []core.DBExecutor) sqlx.ExtContext {
	return extOf(repo.db, exec)
}

// Axis

func (repo hierarchyRepository) CheckAxisNameUniqueness(ctx context.Context, name string, excludedIDs []int, exec ...core.DBExecutor) error {
	var exists bool
	err := sqlx.GetContext(ctx, repo.ext(exec), &exists,
		`SELECT EXISTS(SELECT 1 FROM axis WHERE LOWER(name) = LOWER($1) AND NOT (id = ANY($2)))`,
		name, int64Array(excludedIDs),
	)
	if err != nil {
		return errors.Wrap(err, "checking axis name")
	}
	if exists {
		return hierarchy.ErrAxisExists
	}
	return nil
}

func (repo hierarchyRepository) CreateAxis(ctx context.Context, axis hierarchy.Axis, exec ...core.DBExecutor) (hierarchy.Axis, error) {
	err := sqlx.GetContext(ctx, repo.ext(exec), &axis.ID,
		`INSERT INTO axis (name, description) VALUES ($1, $2) RETURNING id`,
		axis.Name, axis.Description,
	)
	return axis, err
}

func (repo hierarchyRepository) GetAxisByID(ctx context.Context, id int, exec ...core.DBExecutor) (hierarchy.Axis, error) {
	var axis hierarchy.Axis
	err := sqlx.GetContext(ctx, repo.ext(exec), &axis, `SELECT * FROM axis WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return hierarchy.Axis{}, hierarchy.ErrNotFound
	}
	return axis, err
}

func (repo hierarchyRepository) QueryAllAxes(ctx context.Context, exec ...core.DBExecutor) ([]hierarchy.Axis, error) {
	axes := []hierarchy.Axis{}
	err := sqlx.SelectContext(ctx, repo.ext(exec), &axes, `SELECT * FROM axis ORDER BY id`)
	return axes, err
}

func (repo hierarchyRepository) UpdateAxis(ctx context.Context, axis hierarchy.Axis, exec ...core.DBExecutor) (hierarchy.Axis, error) {
	_, err := repo.ext(exec).ExecContext(ctx,
		`UPDATE axis SET name = $1, description = $2 WHERE id = $3`,
		axis.Name, axis.Description, axis.ID,
	)
	return axis, err
}

func (repo hierarchyRepository) DeleteAxis(ctx context.Context, id int, exec ...core.DBExecutor) error {
	_, err := repo.ext(exec).ExecContext(ctx, `DELETE FROM axis WHERE id = $1`, id)
	return err
}

// Indicator

const indicatorCols = `i.id, i.name, i.weight, i.description, i.axis_id, i.is_active, i.allow_direct_score, a.name AS axis_name`

func (repo hierarchyRepository) CheckIndicatorNameUniqueness(ctx context.Context, axisID int, name string, excludedIDs []int, exec ...core.DBExecutor) error {
	var exists bool
	err := sqlx.GetContext(ctx, repo.ext(exec), &exists,
		`SELECT EXISTS(SELECT 1 FROM indicator WHERE axis_id = $1 AND LOWER(name) = LOWER($2) AND NOT (id = ANY($3)))`,
		axisID, name, int64Array(excludedIDs),
	)
	if err != nil {
		return errors.Wrap(err, "checking indicator name")
	}
	if exists {
		return hierarchy.ErrIndicatorExists
	}
	return nil
}

func (repo hierarchyRepository) CreateIndicator(ctx context.Context, ind hierarchy.Indicator, exec ...core.DBExecutor) (hierarchy.Indicator, error) {
	err := sqlx.GetContext(ctx, repo.ext(exec), &ind.ID,
		`INSERT INTO indicator (name, weight, description, axis_id, is_active, allow_direct_score)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		ind.Name, ind.Weight, ind.Description, ind.AxisID, ind.IsActive, ind.AllowDirectScore,
	)
	return ind, err
}

func (repo hierarchyRepository) GetIndicatorByID(ctx context.Context, id int, exec ...core.DBExecutor) (hierarchy.Indicator, error) {
	var ind hierarchy.Indicator
	err := sqlx.GetContext(ctx, repo.ext(exec), &ind,
		`SELECT `+indicatorCols+` FROM indicator i JOIN axis a ON a.id = i.axis_id WHERE i.id = $1`, id)
	if err == sql.ErrNoRows {
		return hierarchy.Indicator{}, hierarchy.ErrNotFound
	}
	return ind, err
}

func (repo hierarchyRepository) QueryAllIndicators(ctx context.Context, exec ...core.DBExecutor) ([]hierarchy.Indicator, error) {
	inds := []hierarchy.Indicator{}
	err := sqlx.SelectContext(ctx, repo.ext(exec), &inds,
		`SELECT `+indicatorCols+` FROM indicator i JOIN axis a ON a.id = i.axis_id ORDER BY i.axis_id, i.id`)
	return inds, err
}

func (repo hierarchyRepository) QueryActiveIndicators(ctx context.Context, exec ...core.DBExecutor) ([]hierarchy.Indicator, error) {
	inds := []hierarchy.Indicator{}
	err := sqlx.SelectContext(ctx, repo.ext(exec), &inds,
		`SELECT `+indicatorCols+` FROM indicator i JOIN axis a ON a.id = i.axis_id
		 WHERE i.is_active ORDER BY i.axis_id, i.id`)
	return inds, err
}

func (repo hierarchyRepository) UpdateIndicator(ctx context.Context, ind hierarchy.Indicator, exec ...core.DBExecutor) (hierarchy.Indicator, error) {
	_, err := repo.ext(exec).ExecContext(ctx,
		`UPDATE indicator SET name = $1, weight = $2, description = $3, axis_id = $4, is_active = $5 WHERE id = $6`,
		ind.Name, ind.Weight, ind.Description, ind.AxisID, ind.IsActive, ind.ID,
	)
	return ind, err
}

func (repo hierarchyRepository) SetIndicatorDirectScore(ctx context.Context, id int, allow bool, exec ...core.DBExecutor) error {
	_, err := repo.ext(exec).ExecContext(ctx, `UPDATE indicator SET allow_direct_score = $1 WHERE id = $2`, allow, id)
	return err
}

func (repo hierarchyRepository) HasActiveMeasures(ctx context.Context, indicatorID int, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, repo.ext(exec), &exists,
		`SELECT EXISTS(SELECT 1 FROM measure WHERE indicator_id = $1 AND is_active)`, indicatorID)
	return exists, err
}

func (repo hierarchyRepository) DeleteIndicator(ctx context.Context, id int, exec ...core.DBExecutor) error {
	_, err := repo.ext(exec).ExecContext(ctx, `DELETE FROM indicator WHERE id = $1`, id)
	return err
}

// Measure

const measureCols = `m.id, m.name, m.weight, m.description, m.indicator_id, m.is_active,
	i.name AS indicator_name, i.axis_id, a.name AS axis_name`

func (repo hierarchyRepository) CheckMeasureNameUniqueness(ctx context.Context, indicatorID int, name string, excludedIDs []int, exec ...core.DBExecutor) error {
	var exists bool
	err := sqlx.GetContext(ctx, repo.ext(exec), &exists,
		`SELECT EXISTS(SELECT 1 FROM measure WHERE indicator_id = $1 AND LOWER(name) = LOWER($2) AND NOT (id = ANY($3)))`,
		indicatorID, name, int64Array(excludedIDs),
	)
	if err != nil {
		return errors.Wrap(err, "checking measure name")
	}
	if exists {
		return hierarchy.ErrMeasureExists
	}
	return nil
}

func (repo hierarchyRepository) CreateMeasure(ctx context.Context, m hierarchy.Measure, exec ...core.DBExecutor) (hierarchy.Measure, error) {
	err := sqlx.GetContext(ctx, repo.ext(exec), &m.ID,
		`INSERT INTO measure (name, weight, description, indicator_id, is_active)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		m.Name, m.Weight, m.Description, m.IndicatorID, m.IsActive,
	)
	return m, err
}

func (repo hierarchyRepository) GetMeasureByID(ctx context.Context, id int, exec ...core.DBExecutor) (hierarchy.Measure, error) {
	var m hierarchy.Measure
	err := sqlx.GetContext(ctx, repo.ext(exec), &m,
		`SELECT `+measureCols+` FROM measure m
		 JOIN indicator i ON i.id = m.indicator_id
		 JOIN axis a ON a.id = i.axis_id
		 WHERE m.id = $1`, id)
	if err == sql.ErrNoRows {
		return hierarchy.Measure{}, hierarchy.ErrNotFound
	}
	return m, err
}

func (repo hierarchyRepository) QueryAllMeasures(ctx context.Context, exec ...core.DBExecutor) ([]hierarchy.Measure, error) {
	measures := []hierarchy.Measure{}
	err := sqlx.SelectContext(ctx, repo.ext(exec), &measures,
		`SELECT `+measureCols+` FROM measure m
		 JOIN indicator i ON i.id = m.indicator_id
		 JOIN axis a ON a.id = i.axis_id
		 ORDER BY i.axis_id, m.indicator_id, m.id`)
	return measures, err
}

func (repo hierarchyRepository) QueryActiveMeasures(ctx context.Context, exec ...core.DBExecutor) ([]hierarchy.Measure, error) {
	measures := []hierarchy.Measure{}
	err := sqlx.SelectContext(ctx, repo.ext(exec), &measures,
		`SELECT `+measureCols+` FROM measure m
		 JOIN indicator i ON i.id = m.indicator_id
		 JOIN axis a ON a.id = i.axis_id
		 WHERE m.is_active AND i.is_active
		 ORDER BY i.axis_id, m.indicator_id, m.id`)
	return measures, err
}

func (repo hierarchyRepository) UpdateMeasure(ctx context.Context, m hierarchy.Measure, exec ...core.DBExecutor) (hierarchy.Measure, error) {
	_, err := repo.ext(exec).ExecContext(ctx,
		`UPDATE measure SET name = $1, weight = $2, description = $3, indicator_id = $4, is_active = $5 WHERE id = $6`,
		m.Name, m.Weight, m.Description, m.IndicatorID, m.IsActive, m.ID,
	)
	return m, err
}

func (repo hierarchyRepository) DeleteMeasure(ctx context.Context, id int, exec ...core.DBExecutor) error {
	_, err := repo.ext(exec).ExecContext(ctx, `DELETE FROM measure WHERE id = $1`, id)
	return err
}
