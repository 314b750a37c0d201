package hierarchy

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ItemKind tells whether a scoreable item is a Measure or a directly-scored
// Indicator.
type ItemKind string

const (
	KindMeasure   ItemKind = "measure"
	KindIndicator ItemKind = "indicator"
)

// ScoreableItem is one entry of the flattened list of items currently
// eligible to receive a score.
//
// DisplayName is the stable external key used for spreadsheet column headers
// and score form fields: "Axis / Indicator / Measure" for a measure,
// "Axis / Indicator (direct)" for a directly-scored indicator.
type ScoreableItem struct {
	Kind        ItemKind `json:"kind"`
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Weight      float64  `json:"weight"`
	IndicatorID int      `json:"indicator_id"`
	AxisID      int      `json:"axis_id"`
	DisplayName string   `json:"display_name"`
}

func measureDisplayName(m Measure) string {
	return fmt.Sprintf("%s / %s / %s", m.AxisName, m.IndicatorName, m.Name)
}

func indicatorDisplayName(ind Indicator) string {
	return fmt.Sprintf("%s / %s (direct)", ind.AxisName, ind.Name)
}

// ScoreableItems returns every active Measure under an active Indicator,
// ordered by (axis id, indicator id, measure id), followed by every Indicator
// with AllowDirectScore set, ordered by (axis id, indicator id). Rows with
// missing parents were already skipped by the repository queries.
func (svc *Service) ScoreableItems(ctx context.Context) ([]ScoreableItem, error) {
	measures, err := svc.repo.QueryActiveMeasures(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying active measures")
	}
	indicators, err := svc.repo.QueryActiveIndicators(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying active indicators")
	}

	items := make([]ScoreableItem, 0, len(measures)+len(indicators))
	for _, m := range measures {
		items = append(items, ScoreableItem{
			Kind:        KindMeasure,
			ID:          m.ID,
			Name:        m.Name,
			Weight:      m.Weight,
			IndicatorID: m.IndicatorID,
			AxisID:      m.AxisID,
			DisplayName: measureDisplayName(m),
		})
	}
	for _, ind := range indicators {
		if !ind.AllowDirectScore {
			continue
		}
		items = append(items, ScoreableItem{
			Kind:        KindIndicator,
			ID:          ind.ID,
			Name:        ind.Name,
			Weight:      ind.Weight,
			IndicatorID: ind.ID,
			AxisID:      ind.AxisID,
			DisplayName: indicatorDisplayName(ind),
		})
	}
	return items, nil
}

// DuplicateDisplayNames reports every display name shared by more than one
// scoreable item. Such collisions would silently merge spreadsheet columns,
// so import/export refuses to proceed while any exist.
func DuplicateDisplayNames(items []ScoreableItem) []string {
	seen := make(map[string]int, len(items))
	for _, it := range items {
		seen[it.DisplayName]++
	}
	var dups []string
	for _, it := range items {
		if seen[it.DisplayName] > 1 {
			dups = append(dups, it.DisplayName)
			seen[it.DisplayName] = 0 // report once
		}
	}
	return dups
}
