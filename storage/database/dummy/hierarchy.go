package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/hierarchy"
)

var pkCount int

type hierarchyRepository struct {
	db     *hierarchyTables
	scores *participantTables
}

var _ hierarchy.Repository = (*hierarchyRepository)(nil) // interface compliance check

func NewHierarchyRepository(db *DB) *hierarchyRepository {
	return &hierarchyRepository{db: db.hierarchy, scores: db.participant}
}

// cascadeScores mirrors the schema's ON DELETE CASCADE: score rows
// targeting any of the given measures or indicators go with them.
func (repo *hierarchyRepository) cascadeScores(measureIDs, indicatorIDs []int) {
	repo.scores.Lock()
	defer repo.scores.Unlock()

	for id, s := range repo.scores.scores {
		if s.MeasureID.Valid && isExcludedID(int(s.MeasureID.Int), measureIDs) {
			delete(repo.scores.scores, id)
		}
		if s.IndicatorID.Valid && isExcludedID(int(s.IndicatorID.Int), indicatorIDs) {
			delete(repo.scores.scores, id)
		}
	}
}

func isExcludedID(id int, excludedIDs []int) bool {
	for _, excl := range excludedIDs {
		if id == excl {
			return true
		}
	}
	return false
}

func sameName(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Axis

func (repo *hierarchyRepository) CheckAxisNameUniqueness(_ context.Context, name string, excludedIDs []int, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, ax := range repo.db.axes {
		if sameName(ax.Name, name) && !isExcludedID(ax.ID, excludedIDs) {
			return hierarchy.ErrAxisExists
		}
	}
	return nil
}

func (repo *hierarchyRepository) CreateAxis(_ context.Context, axis hierarchy.Axis, _ ...core.DBExecutor) (hierarchy.Axis, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	pkCount++
	axis.ID = pkCount
	repo.db.axes[axis.ID] = &axis
	return axis, nil
}

func (repo *hierarchyRepository) GetAxisByID(_ context.Context, id int, _ ...core.DBExecutor) (hierarchy.Axis, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ax, ok := repo.db.axes[id]; ok {
		return *ax, nil
	}
	return hierarchy.Axis{}, hierarchy.ErrNotFound
}

func (repo *hierarchyRepository) QueryAllAxes(_ context.Context, _ ...core.DBExecutor) ([]hierarchy.Axis, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	axes := make([]hierarchy.Axis, 0, len(repo.db.axes))
	for _, ax := range repo.db.axes {
		axes = append(axes, *ax)
	}
	sort.Slice(axes, func(i, j int) bool { return axes[i].ID < axes[j].ID })
	return axes, nil
}

func (repo *hierarchyRepository) UpdateAxis(_ context.Context, axis hierarchy.Axis, _ ...core.DBExecutor) (hierarchy.Axis, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.axes[axis.ID]; !ok {
		return hierarchy.Axis{}, hierarchy.ErrNotFound
	}
	repo.db.axes[axis.ID] = &axis
	return axis, nil
}

func (repo *hierarchyRepository) DeleteAxis(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	var measureIDs, indicatorIDs []int
	for _, ind := range repo.db.indicators {
		if ind.AxisID == id {
			for _, m := range repo.db.measures {
				if m.IndicatorID == ind.ID {
					measureIDs = append(measureIDs, m.ID)
					delete(repo.db.measures, m.ID)
				}
			}
			indicatorIDs = append(indicatorIDs, ind.ID)
			delete(repo.db.indicators, ind.ID)
		}
	}
	delete(repo.db.axes, id)
	repo.cascadeScores(measureIDs, indicatorIDs)
	return nil
}

// Indicator

func (repo *hierarchyRepository) CheckIndicatorNameUniqueness(_ context.Context, axisID int, name string, excludedIDs []int, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, ind := range repo.db.indicators {
		if ind.AxisID == axisID && sameName(ind.Name, name) && !isExcludedID(ind.ID, excludedIDs) {
			return hierarchy.ErrIndicatorExists
		}
	}
	return nil
}

func (repo *hierarchyRepository) CreateIndicator(_ context.Context, ind hierarchy.Indicator, _ ...core.DBExecutor) (hierarchy.Indicator, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	pkCount++
	ind.ID = pkCount
	repo.db.indicators[ind.ID] = &ind
	return ind, nil
}

func (repo *hierarchyRepository) getIndicator(id int) (hierarchy.Indicator, error) {
	ind, ok := repo.db.indicators[id]
	if !ok {
		return hierarchy.Indicator{}, hierarchy.ErrNotFound
	}
	out := *ind
	if ax, ok := repo.db.axes[ind.AxisID]; ok {
		out.AxisName = ax.Name
	}
	return out, nil
}

func (repo *hierarchyRepository) GetIndicatorByID(_ context.Context, id int, _ ...core.DBExecutor) (hierarchy.Indicator, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.getIndicator(id)
}

func (repo *hierarchyRepository) queryIndicators(activeOnly bool) []hierarchy.Indicator {
	inds := make([]hierarchy.Indicator, 0, len(repo.db.indicators))
	for _, ind := range repo.db.indicators {
		if activeOnly && !ind.IsActive {
			continue
		}
		ax, ok := repo.db.axes[ind.AxisID]
		if !ok {
			continue // orphan
		}
		out := *ind
		out.AxisName = ax.Name
		inds = append(inds, out)
	}
	sort.Slice(inds, func(i, j int) bool {
		if inds[i].AxisID != inds[j].AxisID {
			return inds[i].AxisID < inds[j].AxisID
		}
		return inds[i].ID < inds[j].ID
	})
	return inds
}

func (repo *hierarchyRepository) QueryAllIndicators(_ context.Context, _ ...core.DBExecutor) ([]hierarchy.Indicator, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.queryIndicators(false), nil
}

func (repo *hierarchyRepository) QueryActiveIndicators(_ context.Context, _ ...core.DBExecutor) ([]hierarchy.Indicator, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.queryIndicators(true), nil
}

func (repo *hierarchyRepository) UpdateIndicator(_ context.Context, ind hierarchy.Indicator, _ ...core.DBExecutor) (hierarchy.Indicator, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.indicators[ind.ID]
	if !ok {
		return hierarchy.Indicator{}, hierarchy.ErrNotFound
	}
	ind.AllowDirectScore = orig.AllowDirectScore
	repo.db.indicators[ind.ID] = &ind
	return ind, nil
}

func (repo *hierarchyRepository) SetIndicatorDirectScore(_ context.Context, id int, allow bool, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	ind, ok := repo.db.indicators[id]
	if !ok {
		return hierarchy.ErrNotFound
	}
	ind.AllowDirectScore = allow
	return nil
}

func (repo *hierarchyRepository) HasActiveMeasures(_ context.Context, indicatorID int, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, m := range repo.db.measures {
		if m.IndicatorID == indicatorID && m.IsActive {
			return true, nil
		}
	}
	return false, nil
}

func (repo *hierarchyRepository) DeleteIndicator(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	var measureIDs []int
	for _, m := range repo.db.measures {
		if m.IndicatorID == id {
			measureIDs = append(measureIDs, m.ID)
			delete(repo.db.measures, m.ID)
		}
	}
	delete(repo.db.indicators, id)
	repo.cascadeScores(measureIDs, []int{id})
	return nil
}

// Measure

func (repo *hierarchyRepository) CheckMeasureNameUniqueness(_ context.Context, indicatorID int, name string, excludedIDs []int, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, m := range repo.db.measures {
		if m.IndicatorID == indicatorID && sameName(m.Name, name) && !isExcludedID(m.ID, excludedIDs) {
			return hierarchy.ErrMeasureExists
		}
	}
	return nil
}

func (repo *hierarchyRepository) CreateMeasure(_ context.Context, m hierarchy.Measure, _ ...core.DBExecutor) (hierarchy.Measure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	pkCount++
	m.ID = pkCount
	repo.db.measures[m.ID] = &m
	return m, nil
}

func (repo *hierarchyRepository) joinMeasure(m hierarchy.Measure) hierarchy.Measure {
	if ind, ok := repo.db.indicators[m.IndicatorID]; ok {
		m.IndicatorName = ind.Name
		m.AxisID = ind.AxisID
		if ax, ok := repo.db.axes[ind.AxisID]; ok {
			m.AxisName = ax.Name
		}
	}
	return m
}

func (repo *hierarchyRepository) GetMeasureByID(_ context.Context, id int, _ ...core.DBExecutor) (hierarchy.Measure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.measures[id]; ok {
		return repo.joinMeasure(*m), nil
	}
	return hierarchy.Measure{}, hierarchy.ErrNotFound
}

func (repo *hierarchyRepository) queryMeasures(activeOnly bool) []hierarchy.Measure {
	measures := make([]hierarchy.Measure, 0, len(repo.db.measures))
	for _, m := range repo.db.measures {
		ind, ok := repo.db.indicators[m.IndicatorID]
		if !ok {
			continue // orphan
		}
		if activeOnly && !(m.IsActive && ind.IsActive) {
			continue
		}
		measures = append(measures, repo.joinMeasure(*m))
	}
	sort.Slice(measures, func(i, j int) bool {
		if measures[i].AxisID != measures[j].AxisID {
			return measures[i].AxisID < measures[j].AxisID
		}
		if measures[i].IndicatorID != measures[j].IndicatorID {
			return measures[i].IndicatorID < measures[j].IndicatorID
		}
		return measures[i].ID < measures[j].ID
	})
	return measures
}

func (repo *hierarchyRepository) QueryAllMeasures(_ context.Context, _ ...core.DBExecutor) ([]hierarchy.Measure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.queryMeasures(false), nil
}

func (repo *hierarchyRepository) QueryActiveMeasures(_ context.Context, _ ...core.DBExecutor) ([]hierarchy.Measure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.queryMeasures(true), nil
}

func (repo *hierarchyRepository) UpdateMeasure(_ context.Context, m hierarchy.Measure, _ ...core.DBExecutor) (hierarchy.Measure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.measures[m.ID]; !ok {
		return hierarchy.Measure{}, hierarchy.ErrNotFound
	}
	stored := m
	repo.db.measures[m.ID] = &stored
	return repo.joinMeasure(m), nil
}

func (repo *hierarchyRepository) DeleteMeasure(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.measures, id)
	repo.cascadeScores([]int{id}, nil)
	return nil
}
