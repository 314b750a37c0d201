// Package evaluation computes weighted hierarchical score aggregates:
// per-indicator, per-axis and overall weighted averages, for a single
// participant or across every eligible participant.
package evaluation

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/hierarchy"
	"github.com/rkabuya/evaldesk/core/participant"
)

type (
	// HierarchyReader is the read-only slice of the hierarchy repository the
	// engine needs.
	HierarchyReader interface {
		QueryActiveIndicators(ctx context.Context, exec ...core.DBExecutor) ([]hierarchy.Indicator, error)
		QueryActiveMeasures(ctx context.Context, exec ...core.DBExecutor) ([]hierarchy.Measure, error)
	}

	// ScoreReader is the read-only slice of the participant repository the
	// engine needs.
	ScoreReader interface {
		GetParticipant(ctx context.Context, phone string, exec ...core.DBExecutor) (participant.Participant, error)
		QueryParticipants(ctx context.Context, filter participant.QueryFilter, exec ...core.DBExecutor) ([]participant.Participant, int, error)
		CountParticipants(ctx context.Context, exec ...core.DBExecutor) (int, error)
		QueryAllScores(ctx context.Context, exec ...core.DBExecutor) ([]participant.Score, error)
	}

	Engine struct {
		hierRepo  HierarchyReader
		scoreRepo ScoreReader
	}
)

func NewEngine(hierRepo HierarchyReader, scoreRepo ScoreReader) *Engine {
	return &Engine{hierRepo: hierRepo, scoreRepo: scoreRepo}
}

type (
	IndicatorResult struct {
		ID     int     `json:"id"`
		Name   string  `json:"name"`
		Score  float64 `json:"score"`
		Weight float64 `json:"weight"`
	}

	AxisResult struct {
		ID         int               `json:"id"`
		Name       string            `json:"name"`
		Score      float64           `json:"score"`
		Indicators []IndicatorResult `json:"indicators"`
	}

	// Summary is the aggregation result. In individual mode Participant is
	// set and indicator/axis scores reflect that participant's own scores;
	// in summary mode they are the cross-participant averages.
	// IndicatorAverages always carries the cross-participant averages so an
	// individual can be compared against the population.
	Summary struct {
		Participant       *participant.Participant `json:"participant,omitempty"`
		Axes              []AxisResult             `json:"axes"`
		OverallScore      float64                  `json:"overall_score"`
		IndicatorAverages map[int]float64          `json:"indicator_averages"`
		TotalParticipants int                      `json:"total_participants"`
		// AllScoresZero marks an individual whose recorded scores are all
		// exactly zero (excluded from population averages, yet distinct from
		// a participant that does not exist).
		AllScoresZero bool `json:"all_scores_zero,omitempty"`
	}
)

type targetKey struct {
	kind hierarchy.ItemKind
	id   int
}

func scoreKey(s participant.Score) (targetKey, bool) {
	switch {
	case s.MeasureID.Valid:
		return targetKey{hierarchy.KindMeasure, int(s.MeasureID.Int)}, true
	case s.IndicatorID.Valid:
		return targetKey{hierarchy.KindIndicator, int(s.IndicatorID.Int)}, true
	}
	return targetKey{}, false
}

// weightedMean returns sum(value*weight)/sum(weight), or 0 when the total
// weight is 0. Never NaN, never an error.
func weightedMean(weightedSum, totalWeight float64) float64 {
	if totalWeight > 0 {
		return weightedSum / totalWeight
	}
	return 0.0
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// ComputeSummary aggregates scores over the currently-active hierarchy.
// An empty phone selects summary mode (cross-participant averages); a
// non-empty phone selects individual mode for that participant and fails
// with participant.ErrNotFound when no such participant exists.
//
// The exclusion set and all averages are recomputed from scratch on every
// call; a failure yields no partial Summary.
func (eng *Engine) ComputeSummary(ctx context.Context, phone string) (Summary, error) {
	summary := Summary{
		Axes:              []AxisResult{},
		IndicatorAverages: make(map[int]float64),
	}
	individual := phone != ""

	total, err := eng.scoreRepo.CountParticipants(ctx)
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting participants")
	}
	summary.TotalParticipants = total

	if individual {
		p, err := eng.scoreRepo.GetParticipant(ctx, phone)
		if err != nil {
			return Summary{}, err
		}
		summary.Participant = &p
	}

	indicators, err := eng.hierRepo.QueryActiveIndicators(ctx)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying active indicators")
	}
	measures, err := eng.hierRepo.QueryActiveMeasures(ctx)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying active measures")
	}
	measuresByIndicator := make(map[int][]hierarchy.Measure, len(indicators))
	for _, m := range measures {
		measuresByIndicator[m.IndicatorID] = append(measuresByIndicator[m.IndicatorID], m)
	}

	allScores, err := eng.scoreRepo.QueryAllScores(ctx)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying scores")
	}

	// Cross-participant averages leave out participants whose recorded
	// scores are entirely absent or all exactly zero.
	participants, _, err := eng.scoreRepo.QueryParticipants(ctx, participant.QueryFilter{Page: 1, Size: total})
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying participants")
	}
	excluded := excludedParticipants(participants, allScores)
	population := make(map[targetKey][]float64)
	for _, s := range allScores {
		if excluded[s.ParticipantPhone] {
			continue
		}
		if key, ok := scoreKey(s); ok {
			population[key] = append(population[key], s.Value)
		}
	}

	for _, ind := range indicators {
		if ind.AllowDirectScore {
			summary.IndicatorAverages[ind.ID] = mean(population[targetKey{hierarchy.KindIndicator, ind.ID}])
			continue
		}
		var weightedSum, totalWeight float64
		for _, m := range measuresByIndicator[ind.ID] {
			values := population[targetKey{hierarchy.KindMeasure, m.ID}]
			if len(values) == 0 {
				continue // unscored measures contribute no weight
			}
			weightedSum += mean(values) * m.Weight
			totalWeight += m.Weight
		}
		summary.IndicatorAverages[ind.ID] = weightedMean(weightedSum, totalWeight)
	}

	// Context score per indicator: the participant's own result in
	// individual mode, the population average in summary mode.
	contextScores := make(map[int]float64, len(indicators))
	if individual {
		own := make(map[targetKey]float64)
		var ownSum float64
		var ownCount int
		for _, s := range allScores {
			if s.ParticipantPhone != phone {
				continue
			}
			if key, ok := scoreKey(s); ok {
				own[key] = s.Value
				ownSum += s.Value
				ownCount++
			}
		}
		summary.AllScoresZero = ownCount > 0 && ownSum == 0.0

		for _, ind := range indicators {
			if ind.AllowDirectScore {
				contextScores[ind.ID] = own[targetKey{hierarchy.KindIndicator, ind.ID}]
				continue
			}
			var weightedSum, totalWeight float64
			for _, m := range measuresByIndicator[ind.ID] {
				value, ok := own[targetKey{hierarchy.KindMeasure, m.ID}]
				if !ok {
					continue // missing scores leave the denominator
				}
				weightedSum += value * m.Weight
				totalWeight += m.Weight
			}
			contextScores[ind.ID] = weightedMean(weightedSum, totalWeight)
		}
	} else {
		for _, ind := range indicators {
			contextScores[ind.ID] = summary.IndicatorAverages[ind.ID]
		}
	}

	// Axis aggregation and overall score, weighted by indicator weights.
	axisByID := make(map[int]*AxisResult)
	axisWeights := make(map[int]*[2]float64) // weighted sum, total weight
	var overallSum, overallWeight float64
	for _, ind := range indicators {
		ar, ok := axisByID[ind.AxisID]
		if !ok {
			ar = &AxisResult{ID: ind.AxisID, Name: ind.AxisName, Indicators: []IndicatorResult{}}
			axisByID[ind.AxisID] = ar
			axisWeights[ind.AxisID] = &[2]float64{}
		}
		score := contextScores[ind.ID]
		ar.Indicators = append(ar.Indicators, IndicatorResult{
			ID:     ind.ID,
			Name:   ind.Name,
			Score:  score,
			Weight: ind.Weight,
		})
		axisWeights[ind.AxisID][0] += score * ind.Weight
		axisWeights[ind.AxisID][1] += ind.Weight
		overallSum += score * ind.Weight
		overallWeight += ind.Weight
	}
	for id, ar := range axisByID {
		ar.Score = weightedMean(axisWeights[id][0], axisWeights[id][1])
		summary.Axes = append(summary.Axes, *ar)
	}
	summary.OverallScore = weightedMean(overallSum, overallWeight)

	// deterministic presentation order
	sort.Slice(summary.Axes, func(i, j int) bool { return summary.Axes[i].Name < summary.Axes[j].Name })
	for i := range summary.Axes {
		inds := summary.Axes[i].Indicators
		sort.Slice(inds, func(a, b int) bool { return inds[a].Name < inds[b].Name })
	}
	return summary, nil
}
