package participant

import (
	"context"

	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core/hierarchy"
)

// ExportData gathers everything a raw score export needs: the current
// scoreable items, every participant and their scores grouped by phone.
func (svc *Service) ExportData(ctx context.Context) ([]hierarchy.ScoreableItem, []Participant, map[string][]Score, error) {
	items, err := svc.items.ScoreableItems(ctx)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "listing scoreable items")
	}

	total, err := svc.repo.CountParticipants(ctx)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "counting participants")
	}
	participants := []Participant{}
	if total > 0 {
		participants, _, err = svc.repo.QueryParticipants(ctx, QueryFilter{Page: 1, Size: total})
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "querying participants")
		}
	}

	scores, err := svc.repo.QueryAllScores(ctx)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "querying scores")
	}
	byPhone := make(map[string][]Score)
	for _, s := range scores {
		byPhone[s.ParticipantPhone] = append(byPhone[s.ParticipantPhone], s)
	}
	return items, participants, byPhone, nil
}
