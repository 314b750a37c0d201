package hierarchy

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/rkabuya/evaldesk/core"
)

var (
	// errors
	ErrNotFound        = errors.New("item not found")
	ErrAxisExists      = errors.New("an axis with this name already exists")
	ErrIndicatorExists = errors.New("an indicator with this name already exists in this axis")
	ErrMeasureExists   = errors.New("a measure with this name already exists in this indicator")
)

type (
	Repository interface {
		// Axis
		CheckAxisNameUniqueness(ctx context.Context, name string, excludedIDs []int, exec ...core.DBExecutor) error
		CreateAxis(ctx context.Context, axis Axis, exec ...core.DBExecutor) (Axis, error)
		GetAxisByID(ctx context.Context, id int, exec ...core.DBExecutor) (Axis, error)
		QueryAllAxes(ctx context.Context, exec ...core.DBExecutor) ([]Axis, error)
		UpdateAxis(ctx context.Context, axis Axis, exec ...core.DBExecutor) (Axis, error)
		DeleteAxis(ctx context.Context, id int, exec ...core.DBExecutor) error

		// Indicator
		CheckIndicatorNameUniqueness(ctx context.Context, axisID int, name string, excludedIDs []int, exec ...core.DBExecutor) error
		CreateIndicator(ctx context.Context, ind Indicator, exec ...core.DBExecutor) (Indicator, error)
		GetIndicatorByID(ctx context.Context, id int, exec ...core.DBExecutor) (Indicator, error)
		QueryAllIndicators(ctx context.Context, exec ...core.DBExecutor) ([]Indicator, error)
		// QueryActiveIndicators returns active indicators joined with their
		// axis, ordered by (axis id, indicator id). Orphans are skipped.
		QueryActiveIndicators(ctx context.Context, exec ...core.DBExecutor) ([]Indicator, error)
		UpdateIndicator(ctx context.Context, ind Indicator, exec ...core.DBExecutor) (Indicator, error)
		SetIndicatorDirectScore(ctx context.Context, id int, allow bool, exec ...core.DBExecutor) error
		HasActiveMeasures(ctx context.Context, indicatorID int, exec ...core.DBExecutor) (bool, error)
		DeleteIndicator(ctx context.Context, id int, exec ...core.DBExecutor) error

		// Measure
		CheckMeasureNameUniqueness(ctx context.Context, indicatorID int, name string, excludedIDs []int, exec ...core.DBExecutor) error
		CreateMeasure(ctx context.Context, m Measure, exec ...core.DBExecutor) (Measure, error)
		GetMeasureByID(ctx context.Context, id int, exec ...core.DBExecutor) (Measure, error)
		QueryAllMeasures(ctx context.Context, exec ...core.DBExecutor) ([]Measure, error)
		// QueryActiveMeasures returns active measures whose parent indicator
		// is also active, joined with indicator and axis, ordered by
		// (axis id, indicator id, measure id). Orphans are skipped.
		QueryActiveMeasures(ctx context.Context, exec ...core.DBExecutor) ([]Measure, error)
		UpdateMeasure(ctx context.Context, m Measure, exec ...core.DBExecutor) (Measure, error)
		DeleteMeasure(ctx context.Context, id int, exec ...core.DBExecutor) error
	}

	Service struct {
		atomic core.DBTransactionner
		repo   Repository
	}
)

func NewService(atomic core.DBTransactionner, repo Repository) *Service {
	return &Service{atomic: atomic, repo: repo}
}

// refreshDirectScore recomputes Indicator.AllowDirectScore from current state:
// false when the indicator is inactive, otherwise true iff no active child
// Measure exists. It must run inside the caller's transaction; it never commits.
func (svc *Service) refreshDirectScore(ctx context.Context, indicatorID int, tx core.DBExecutor) error {
	ind, err := svc.repo.GetIndicatorByID(ctx, indicatorID, tx)
	if err != nil {
		return errors.Wrap(err, "getting indicator")
	}

	allow := false
	if ind.IsActive {
		hasActive, err := svc.repo.HasActiveMeasures(ctx, indicatorID, tx)
		if err != nil {
			return errors.Wrap(err, "checking active measures")
		}
		allow = !hasActive
	}
	if allow == ind.AllowDirectScore {
		return nil
	}
	return errors.Wrap(svc.repo.SetIndicatorDirectScore(ctx, indicatorID, allow, tx), "setting direct score flag")
}

func uniquenessError(err error) error {
	var field string
	switch err {
	case ErrAxisExists, ErrIndicatorExists, ErrMeasureExists:
		field = "name"
	default:
		return err
	}
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// Tree returns the entire hierarchy, axes and indicators ordered by name.
func (svc *Service) Tree(ctx context.Context) ([]AxisNode, error) {
	axes, err := svc.repo.QueryAllAxes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying axes")
	}
	inds, err := svc.repo.QueryAllIndicators(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying indicators")
	}
	measures, err := svc.repo.QueryAllMeasures(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying measures")
	}

	indNodes := make(map[int]*IndicatorNode, len(inds))
	for _, ind := range inds {
		ind := ind
		indNodes[ind.ID] = &IndicatorNode{Indicator: ind, Measures: []Measure{}}
	}
	for _, m := range measures {
		if node, ok := indNodes[m.IndicatorID]; ok {
			node.Measures = append(node.Measures, m)
		}
	}

	tree := make([]AxisNode, 0, len(axes))
	for _, ax := range axes {
		node := AxisNode{Axis: ax, Indicators: []IndicatorNode{}}
		for _, ind := range inds {
			if ind.AxisID == ax.ID {
				node.Indicators = append(node.Indicators, *indNodes[ind.ID])
			}
		}
		sort.Slice(node.Indicators, func(i, j int) bool { return node.Indicators[i].Name < node.Indicators[j].Name })
		for i := range node.Indicators {
			ms := node.Indicators[i].Measures
			sort.Slice(ms, func(a, b int) bool { return ms[a].Name < ms[b].Name })
		}
		tree = append(tree, node)
	}
	sort.Slice(tree, func(i, j int) bool { return tree[i].Name < tree[j].Name })
	return tree, nil
}

// Axis operations

func (svc *Service) CreateAxis(ctx context.Context, na NewAxis) (Axis, error) {
	var axis Axis
	err := svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		if err := svc.repo.CheckAxisNameUniqueness(ctx, na.Name, nil, tx); err != nil {
			return uniquenessError(err)
		}
		var err error
		axis, err = svc.repo.CreateAxis(ctx, Axis{
			Name:        na.Name,
			Description: null.NewString(na.Description, na.Description != ""),
		}, tx)
		return errors.Wrap(err, "creating axis")
	})
	return axis, err
}

func (svc *Service) UpdateAxis(ctx context.Context, id int, ua UpdateAxis) (Axis, error) {
	var axis Axis
	err := svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		orig, err := svc.repo.GetAxisByID(ctx, id, tx)
		if err != nil {
			return err
		}
		if err = svc.repo.CheckAxisNameUniqueness(ctx, ua.Name, []int{orig.ID}, tx); err != nil {
			return uniquenessError(err)
		}
		orig.Name = ua.Name
		orig.Description = null.NewString(ua.Description, ua.Description != "")
		axis, err = svc.repo.UpdateAxis(ctx, orig, tx)
		return errors.Wrap(err, "updating axis")
	})
	return axis, err
}

// DeleteAxis removes an axis; its indicators, measures and scores cascade.
func (svc *Service) DeleteAxis(ctx context.Context, id int) error {
	return svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetAxisByID(ctx, id, tx); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.DeleteAxis(ctx, id, tx), "deleting axis")
	})
}

// Indicator operations

func (svc *Service) CreateIndicator(ctx context.Context, ni NewIndicator) (Indicator, error) {
	var ind Indicator
	err := svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetAxisByID(ctx, ni.AxisID, tx); err != nil {
			if errors.Cause(err) == ErrNotFound {
				return core.NewValidationError(err, core.FieldError{Field: "axis_id", Error: "axis not found"})
			}
			return err
		}
		if err := svc.repo.CheckIndicatorNameUniqueness(ctx, ni.AxisID, ni.Name, nil, tx); err != nil {
			return uniquenessError(err)
		}
		var err error
		ind, err = svc.repo.CreateIndicator(ctx, Indicator{
			Name:        ni.Name,
			Weight:      *ni.Weight,
			Description: null.NewString(ni.Description, ni.Description != ""),
			AxisID:      ni.AxisID,
			IsActive:    ni.active(),
		}, tx)
		if err != nil {
			return errors.Wrap(err, "creating indicator")
		}
		if err = svc.refreshDirectScore(ctx, ind.ID, tx); err != nil {
			return err
		}
		ind, err = svc.repo.GetIndicatorByID(ctx, ind.ID, tx)
		return err
	})
	return ind, err
}

func (svc *Service) UpdateIndicator(ctx context.Context, id int, ui UpdateIndicator) (Indicator, error) {
	var ind Indicator
	err := svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		orig, err := svc.repo.GetIndicatorByID(ctx, id, tx)
		if err != nil {
			return err
		}
		if _, err = svc.repo.GetAxisByID(ctx, ui.AxisID, tx); err != nil {
			if errors.Cause(err) == ErrNotFound {
				return core.NewValidationError(err, core.FieldError{Field: "axis_id", Error: "axis not found"})
			}
			return err
		}
		if err = svc.repo.CheckIndicatorNameUniqueness(ctx, ui.AxisID, ui.Name, []int{orig.ID}, tx); err != nil {
			return uniquenessError(err)
		}

		orig.Name = ui.Name
		orig.Weight = *ui.Weight
		orig.Description = null.NewString(ui.Description, ui.Description != "")
		orig.AxisID = ui.AxisID
		if ui.IsActive != nil {
			orig.IsActive = *ui.IsActive
		}
		if _, err = svc.repo.UpdateIndicator(ctx, orig, tx); err != nil {
			return errors.Wrap(err, "updating indicator")
		}
		if err = svc.refreshDirectScore(ctx, orig.ID, tx); err != nil {
			return err
		}
		ind, err = svc.repo.GetIndicatorByID(ctx, orig.ID, tx)
		return err
	})
	return ind, err
}

// ToggleIndicator flips the indicator's active flag and refreshes its
// direct-score allowance within the same transaction.
func (svc *Service) ToggleIndicator(ctx context.Context, id int) (Indicator, error) {
	var ind Indicator
	err := svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		orig, err := svc.repo.GetIndicatorByID(ctx, id, tx)
		if err != nil {
			return err
		}
		orig.IsActive = !orig.IsActive
		if _, err = svc.repo.UpdateIndicator(ctx, orig, tx); err != nil {
			return errors.Wrap(err, "toggling indicator")
		}
		if err = svc.refreshDirectScore(ctx, orig.ID, tx); err != nil {
			return err
		}
		ind, err = svc.repo.GetIndicatorByID(ctx, orig.ID, tx)
		return err
	})
	return ind, err
}

// DeleteIndicator removes an indicator; its measures and scores cascade.
func (svc *Service) DeleteIndicator(ctx context.Context, id int) error {
	return svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetIndicatorByID(ctx, id, tx); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.DeleteIndicator(ctx, id, tx), "deleting indicator")
	})
}

// Measure operations

func (svc *Service) CreateMeasure(ctx context.Context, nm NewMeasure) (Measure, error) {
	var m Measure
	err := svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetIndicatorByID(ctx, nm.IndicatorID, tx); err != nil {
			if errors.Cause(err) == ErrNotFound {
				return core.NewValidationError(err, core.FieldError{Field: "indicator_id", Error: "indicator not found"})
			}
			return err
		}
		if err := svc.repo.CheckMeasureNameUniqueness(ctx, nm.IndicatorID, nm.Name, nil, tx); err != nil {
			return uniquenessError(err)
		}
		var err error
		m, err = svc.repo.CreateMeasure(ctx, Measure{
			Name:        nm.Name,
			Weight:      *nm.Weight,
			Description: null.NewString(nm.Description, nm.Description != ""),
			IndicatorID: nm.IndicatorID,
			IsActive:    nm.active(),
		}, tx)
		if err != nil {
			return errors.Wrap(err, "creating measure")
		}
		return svc.refreshDirectScore(ctx, nm.IndicatorID, tx)
	})
	return m, err
}

func (svc *Service) UpdateMeasure(ctx context.Context, id int, um UpdateMeasure) (Measure, error) {
	var m Measure
	err := svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		orig, err := svc.repo.GetMeasureByID(ctx, id, tx)
		if err != nil {
			return err
		}
		if _, err = svc.repo.GetIndicatorByID(ctx, um.IndicatorID, tx); err != nil {
			if errors.Cause(err) == ErrNotFound {
				return core.NewValidationError(err, core.FieldError{Field: "indicator_id", Error: "indicator not found"})
			}
			return err
		}
		if err = svc.repo.CheckMeasureNameUniqueness(ctx, um.IndicatorID, um.Name, []int{orig.ID}, tx); err != nil {
			return uniquenessError(err)
		}

		prevIndicatorID := orig.IndicatorID
		orig.Name = um.Name
		orig.Weight = *um.Weight
		orig.Description = null.NewString(um.Description, um.Description != "")
		orig.IndicatorID = um.IndicatorID
		if um.IsActive != nil {
			orig.IsActive = *um.IsActive
		}
		if m, err = svc.repo.UpdateMeasure(ctx, orig, tx); err != nil {
			return errors.Wrap(err, "updating measure")
		}
		if err = svc.refreshDirectScore(ctx, orig.IndicatorID, tx); err != nil {
			return err
		}
		// re-parenting affects the previous indicator's allowance too
		if prevIndicatorID != orig.IndicatorID {
			return svc.refreshDirectScore(ctx, prevIndicatorID, tx)
		}
		return nil
	})
	return m, err
}

// ToggleMeasure flips the measure's active flag and refreshes the parent
// indicator's direct-score allowance within the same transaction.
func (svc *Service) ToggleMeasure(ctx context.Context, id int) (Measure, error) {
	var m Measure
	err := svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		orig, err := svc.repo.GetMeasureByID(ctx, id, tx)
		if err != nil {
			return err
		}
		orig.IsActive = !orig.IsActive
		if m, err = svc.repo.UpdateMeasure(ctx, orig, tx); err != nil {
			return errors.Wrap(err, "toggling measure")
		}
		return svc.refreshDirectScore(ctx, orig.IndicatorID, tx)
	})
	return m, err
}

// DeleteMeasure removes a measure (scores cascade) and refreshes the parent
// indicator's direct-score allowance within the same transaction.
func (svc *Service) DeleteMeasure(ctx context.Context, id int) error {
	return svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		m, err := svc.repo.GetMeasureByID(ctx, id, tx)
		if err != nil {
			return err
		}
		if err = svc.repo.DeleteMeasure(ctx, id, tx); err != nil {
			return errors.Wrap(err, "deleting measure")
		}
		return svc.refreshDirectScore(ctx, m.IndicatorID, tx)
	})
}
