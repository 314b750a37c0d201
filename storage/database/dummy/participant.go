package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/participant"
)

type participantRepository struct {
	db *participantTables
}

var _ participant.Repository = (*participantRepository)(nil) // interface compliance check

func NewParticipantRepository(db *DB) *participantRepository {
	return &participantRepository{db: db.participant}
}

func (repo *participantRepository) CreateParticipant(_ context.Context, p participant.Participant, _ ...core.DBExecutor) (participant.Participant, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.participants[p.Phone] = &p
	return p, nil
}

func (repo *participantRepository) GetParticipant(_ context.Context, phone string, _ ...core.DBExecutor) (participant.Participant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.participants[phone]; ok {
		return *p, nil
	}
	return participant.Participant{}, participant.ErrNotFound
}

func (repo *participantRepository) QueryParticipants(_ context.Context, filter participant.QueryFilter, _ ...core.DBExecutor) ([]participant.Participant, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	participants := make([]participant.Participant, 0, len(repo.db.participants))
	search := strings.ToLower(filter.Search)
	for _, p := range repo.db.participants {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Phone), search) &&
			!strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		participants = append(participants, *p)
	}
	sort.Slice(participants, func(i, j int) bool {
		if !participants[i].CreatedAt.Equal(participants[j].CreatedAt) {
			return participants[i].CreatedAt.After(participants[j].CreatedAt)
		}
		return participants[i].Phone < participants[j].Phone
	})

	total := len(participants)
	start := (filter.Page - 1) * filter.Size
	if start > total {
		start = total
	}
	end := start + filter.Size
	if end > total {
		end = total
	}
	return participants[start:end], total, nil
}

func (repo *participantRepository) CountParticipants(_ context.Context, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.participants), nil
}

func (repo *participantRepository) UpdateParticipant(_ context.Context, p participant.Participant, _ ...core.DBExecutor) (participant.Participant, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.participants[p.Phone]
	if !ok {
		return participant.Participant{}, participant.ErrNotFound
	}
	orig.Name = p.Name
	orig.AttachmentFilename = p.AttachmentFilename
	return *orig, nil
}

func (repo *participantRepository) DeleteParticipant(_ context.Context, phone string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, s := range repo.db.scores {
		if s.ParticipantPhone == phone {
			delete(repo.db.scores, s.ID)
		}
	}
	delete(repo.db.participants, phone)
	return nil
}

func (repo *participantRepository) DeleteAllParticipants(_ context.Context, _ ...core.DBExecutor) (participants, scores int, err error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	participants = len(repo.db.participants)
	scores = len(repo.db.scores)
	repo.db.participants = make(map[string]*participant.Participant)
	repo.db.scores = make(map[int]*participant.Score)
	return participants, scores, nil
}

func (repo *participantRepository) QueryAttachmentFilenames(_ context.Context, _ ...core.DBExecutor) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	names := []string{}
	for _, p := range repo.db.participants {
		if p.AttachmentFilename.Valid {
			names = append(names, p.AttachmentFilename.String)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Scores

func (repo *participantRepository) GetScoreForTarget(_ context.Context, phone string, measureID, indicatorID null.Int, _ ...core.DBExecutor) (participant.Score, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.scores {
		if s.ParticipantPhone != phone {
			continue
		}
		if measureID.Valid && s.MeasureID == measureID {
			return *s, nil
		}
		if !measureID.Valid && indicatorID.Valid && s.IndicatorID == indicatorID {
			return *s, nil
		}
	}
	return participant.Score{}, participant.ErrScoreNotFound
}

func (repo *participantRepository) CreateScore(_ context.Context, s participant.Score, _ ...core.DBExecutor) (participant.Score, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	pkCount++
	s.ID = pkCount
	repo.db.scores[s.ID] = &s
	return s, nil
}

func (repo *participantRepository) UpdateScoreValue(_ context.Context, id int, value float64, ts time.Time, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.scores[id]
	if !ok {
		return participant.ErrScoreNotFound
	}
	s.Value = value
	s.Timestamp = ts
	return nil
}

func (repo *participantRepository) QueryScoresByParticipant(_ context.Context, phone string, _ ...core.DBExecutor) ([]participant.Score, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	scores := []participant.Score{}
	for _, s := range repo.db.scores {
		if s.ParticipantPhone == phone {
			scores = append(scores, *s)
		}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].ID < scores[j].ID })
	return scores, nil
}

func (repo *participantRepository) QueryAllScores(_ context.Context, _ ...core.DBExecutor) ([]participant.Score, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	scores := make([]participant.Score, 0, len(repo.db.scores))
	for _, s := range repo.db.scores {
		scores = append(scores, *s)
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].ID < scores[j].ID })
	return scores, nil
}
