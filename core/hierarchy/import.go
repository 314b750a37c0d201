package hierarchy

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/rkabuya/evaldesk/core"
)

// ImportRow is one normalized spreadsheet row of a hierarchy upload.
type ImportRow struct {
	Line        int // 1-based spreadsheet line, for error reports
	Level       string
	Name        string
	ParentName  string
	Weight      null.Float64
	Description string
}

// RowError ties an import failure to its spreadsheet line.
type RowError struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

func (re RowError) Error() string {
	return fmt.Sprintf("line %d: %s", re.Line, re.Err)
}

// ImportResult reports what a hierarchy import did.
type ImportResult struct {
	Added     int        `json:"added"`
	RowErrors []RowError `json:"row_errors,omitempty"`
}

var errImportAborted = errors.New("hierarchy import aborted")

const (
	LevelAxis      = "axis"
	LevelIndicator = "indicator"
	LevelMeasure   = "measure"
)

// Import creates the axes, indicators and measures described by rows.
// Existing items (matched by name within their parent scope) are skipped.
// The whole upload is one transaction: any row error rolls everything back
// and the errors are returned in the result.
func (svc *Service) Import(ctx context.Context, rows []ImportRow) (ImportResult, error) {
	var res ImportResult

	err := svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		axes, err := svc.repo.QueryAllAxes(ctx, tx)
		if err != nil {
			return errors.Wrap(err, "querying axes")
		}
		inds, err := svc.repo.QueryAllIndicators(ctx, tx)
		if err != nil {
			return errors.Wrap(err, "querying indicators")
		}
		measures, err := svc.repo.QueryAllMeasures(ctx, tx)
		if err != nil {
			return errors.Wrap(err, "querying measures")
		}

		axisByName := make(map[string]Axis, len(axes))
		for _, ax := range axes {
			axisByName[ax.Name] = ax
		}
		axisNameByID := make(map[int]string, len(axes))
		for _, ax := range axes {
			axisNameByID[ax.ID] = ax.Name
		}
		// (indicator name, axis name) -> Indicator
		indByKey := make(map[[2]string]Indicator, len(inds))
		for _, ind := range inds {
			if axName, ok := axisNameByID[ind.AxisID]; ok {
				indByKey[[2]string{ind.Name, axName}] = ind
			}
		}
		indNameByID := make(map[int][2]string, len(inds))
		for key, ind := range indByKey {
			indNameByID[ind.ID] = key
		}
		// (measure name, indicator name, axis name) -> present
		measureKeys := make(map[[3]string]bool, len(measures))
		for _, m := range measures {
			if key, ok := indNameByID[m.IndicatorID]; ok {
				measureKeys[[3]string{m.Name, key[0], key[1]}] = true
			}
		}

		touchedIndicators := make(map[int]bool)

		fail := func(line int, format string, args ...interface{}) {
			res.RowErrors = append(res.RowErrors, RowError{Line: line, Err: fmt.Sprintf(format, args...)})
		}
		parseWeight := func(row ImportRow) (float64, bool) {
			if !row.Weight.Valid {
				fail(row.Line, "%q: weight is required", row.Name)
				return 0, false
			}
			w := row.Weight.Float64
			if w < 0 || w > 1 {
				fail(row.Line, "%q: weight %v is out of range [0, 1]", row.Name, w)
				return 0, false
			}
			return w, true
		}

		for _, row := range rows {
			name := core.CleanString(row.Name)
			parent := core.CleanString(row.ParentName)
			desc := core.CleanString(row.Description)

			if name == "" {
				fail(row.Line, "name is required")
				continue
			}

			switch core.CleanString(row.Level, true) {
			case LevelAxis:
				if parent != "" {
					fail(row.Line, "axis %q: axes must not have a parent_name", name)
					continue
				}
				if _, ok := axisByName[name]; ok {
					continue // already exists
				}
				ax, err := svc.repo.CreateAxis(ctx, Axis{
					Name:        name,
					Description: null.NewString(desc, desc != ""),
				}, tx)
				if err != nil {
					return errors.Wrapf(err, "creating axis %q", name)
				}
				axisByName[name] = ax
				axisNameByID[ax.ID] = name
				res.Added++

			case LevelIndicator:
				if parent == "" {
					fail(row.Line, "indicator %q: parent_name (axis) is required", name)
					continue
				}
				ax, ok := axisByName[parent]
				if !ok {
					fail(row.Line, "indicator %q: parent axis %q not found", name, parent)
					continue
				}
				w, ok := parseWeight(row)
				if !ok {
					continue
				}
				if _, ok := indByKey[[2]string{name, parent}]; ok {
					continue
				}
				ind, err := svc.repo.CreateIndicator(ctx, Indicator{
					Name:        name,
					Weight:      w,
					Description: null.NewString(desc, desc != ""),
					AxisID:      ax.ID,
					IsActive:    true,
				}, tx)
				if err != nil {
					return errors.Wrapf(err, "creating indicator %q", name)
				}
				indByKey[[2]string{name, parent}] = ind
				indNameByID[ind.ID] = [2]string{name, parent}
				touchedIndicators[ind.ID] = true
				res.Added++

			case LevelMeasure:
				if parent == "" {
					fail(row.Line, "measure %q: parent_name (indicator) is required", name)
					continue
				}
				// measures name their parent indicator without an axis
				// qualifier; the first matching indicator wins
				var parentInd Indicator
				var parentAxisName string
				var found bool
				for key, ind := range indByKey {
					if key[0] == parent {
						parentInd, parentAxisName, found = ind, key[1], true
						break
					}
				}
				if !found {
					fail(row.Line, "measure %q: parent indicator %q not found", name, parent)
					continue
				}
				w, ok := parseWeight(row)
				if !ok {
					continue
				}
				mKey := [3]string{name, parent, parentAxisName}
				if measureKeys[mKey] {
					continue
				}
				if _, err := svc.repo.CreateMeasure(ctx, Measure{
					Name:        name,
					Weight:      w,
					Description: null.NewString(desc, desc != ""),
					IndicatorID: parentInd.ID,
					IsActive:    true,
				}, tx); err != nil {
					return errors.Wrapf(err, "creating measure %q", name)
				}
				measureKeys[mKey] = true
				touchedIndicators[parentInd.ID] = true
				res.Added++

			default:
				fail(row.Line, "invalid level %q: must be one of axis, indicator, measure", row.Level)
			}
		}

		if len(res.RowErrors) > 0 {
			return errImportAborted
		}
		for indicatorID := range touchedIndicators {
			if err := svc.refreshDirectScore(ctx, indicatorID, tx); err != nil {
				return err
			}
		}
		return nil
	})

	if errors.Cause(err) == errImportAborted {
		res.Added = 0
		return res, nil
	}
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}
