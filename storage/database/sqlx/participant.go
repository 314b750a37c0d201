package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/participant"
)

type participantRepository struct {
	db *sqlx.DB
}

var _ participant.Repository = (*participantRepository)(nil) // interface compliance check

func NewParticipantRepository(db *sqlx.DB) *participantRepository {
	return &participantRepository{db: db}
}

func (repo participantRepository) ext(exec []core.DBExecutor) sqlx.ExtContext {
	return extOf(repo.db, exec)
}

func (repo participantRepository) CreateParticipant(ctx context.Context, p participant.Participant, exec ...core.DBExecutor) (participant.Participant, error) {
	_, err := repo.ext(exec).ExecContext(ctx,
		`INSERT INTO participant (phone, name, created_at, attachment_filename) VALUES ($1, $2, $3, $4)`,
		p.Phone, p.Name, p.CreatedAt, p.AttachmentFilename,
	)
	return p, err
}

func (repo participantRepository) GetParticipant(ctx context.Context, phone string, exec ...core.DBExecutor) (participant.Participant, error) {
	var p participant.Participant
	err := sqlx.GetContext(ctx, repo.ext(exec), &p, `SELECT * FROM participant WHERE phone = $1`, phone)
	if err == sql.ErrNoRows {
		return participant.Participant{}, participant.ErrNotFound
	}
	return p, err
}

func (repo participantRepository) QueryParticipants(ctx context.Context, filter participant.QueryFilter, exec ...core.DBExecutor) ([]participant.Participant, int, error) {
	e := repo.ext(exec)
	search := "%" + filter.Search + "%"

	var total int
	err := sqlx.GetContext(ctx, e, &total,
		`SELECT COUNT(*) FROM participant WHERE phone ILIKE $1 OR name ILIKE $1`, search)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting participants")
	}

	participants := []participant.Participant{}
	err = sqlx.SelectContext(ctx, e, &participants,
		`SELECT * FROM participant WHERE phone ILIKE $1 OR name ILIKE $1
		 ORDER BY created_at DESC, phone
		 LIMIT $2 OFFSET $3`,
		search, filter.Size, (filter.Page-1)*filter.Size,
	)
	return participants, total, err
}

func (repo participantRepository) CountParticipants(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, repo.ext(exec), &count, `SELECT COUNT(*) FROM participant`)
	return count, err
}

func (repo participantRepository) UpdateParticipant(ctx context.Context, p participant.Participant, exec ...core.DBExecutor) (participant.Participant, error) {
	res, err := repo.ext(exec).ExecContext(ctx,
		`UPDATE participant SET name = $1, attachment_filename = $2 WHERE phone = $3`,
		p.Name, p.AttachmentFilename, p.Phone,
	)
	if err != nil {
		return participant.Participant{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return participant.Participant{}, participant.ErrNotFound
	}
	return p, nil
}

func (repo participantRepository) DeleteParticipant(ctx context.Context, phone string, exec ...core.DBExecutor) error {
	_, err := repo.ext(exec).ExecContext(ctx, `DELETE FROM participant WHERE phone = $1`, phone)
	return err
}

func (repo participantRepository) DeleteAllParticipants(ctx context.Context, exec ...core.DBExecutor) (participants, scores int, err error) {
	e := repo.ext(exec)
	res, err := e.ExecContext(ctx, `DELETE FROM score`)
	if err != nil {
		return 0, 0, errors.Wrap(err, "deleting scores")
	}
	if n, err := res.RowsAffected(); err == nil {
		scores = int(n)
	}
	res, err = e.ExecContext(ctx, `DELETE FROM participant`)
	if err != nil {
		return 0, scores, errors.Wrap(err, "deleting participants")
	}
	if n, err := res.RowsAffected(); err == nil {
		participants = int(n)
	}
	return participants, scores, nil
}

func (repo participantRepository) QueryAttachmentFilenames(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	names := []string{}
	err := sqlx.SelectContext(ctx, repo.ext(exec), &names,
		`SELECT attachment_filename FROM participant WHERE attachment_filename IS NOT NULL`)
	return names, err
}

// Scores

func (repo participantRepository) GetScoreForTarget(ctx context.Context, phone string, measureID, indicatorID null.Int, exec ...core.DBExecutor) (participant.Score, error) {
	var s participant.Score
	var err error
	e := repo.ext(exec)
	switch {
	case measureID.Valid:
		err = sqlx.GetContext(ctx, e, &s,
			`SELECT * FROM score WHERE participant_phone = $1 AND measure_id = $2`, phone, measureID)
	case indicatorID.Valid:
		err = sqlx.GetContext(ctx, e, &s,
			`SELECT * FROM score WHERE participant_phone = $1 AND indicator_id = $2`, phone, indicatorID)
	default:
		return participant.Score{}, participant.ErrScoreNotFound
	}
	if err == sql.ErrNoRows {
		return participant.Score{}, participant.ErrScoreNotFound
	}
	return s, err
}

func (repo participantRepository) CreateScore(ctx context.Context, s participant.Score, exec ...core.DBExecutor) (participant.Score, error) {
	err := sqlx.GetContext(ctx, repo.ext(exec), &s.ID,
		`INSERT INTO score (value, participant_phone, measure_id, indicator_id, ts)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		s.Value, s.ParticipantPhone, s.MeasureID, s.IndicatorID, s.Timestamp,
	)
	return s, err
}

func (repo participantRepository) UpdateScoreValue(ctx context.Context, id int, value float64, ts time.Time, exec ...core.DBExecutor) error {
	res, err := repo.ext(exec).ExecContext(ctx,
		`UPDATE score SET value = $1, ts = $2 WHERE id = $3`, value, ts, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return participant.ErrScoreNotFound
	}
	return nil
}

func (repo participantRepository) QueryScoresByParticipant(ctx context.Context, phone string, exec ...core.DBExecutor) ([]participant.Score, error) {
	scores := []participant.Score{}
	err := sqlx.SelectContext(ctx, repo.ext(exec), &scores,
		`SELECT * FROM score WHERE participant_phone = $1 ORDER BY id`, phone)
	return scores, err
}

func (repo participantRepository) QueryAllScores(ctx context.Context, exec ...core.DBExecutor) ([]participant.Score, error) {
	scores := []participant.Score{}
	err := sqlx.SelectContext(ctx, repo.ext(exec), &scores, `SELECT * FROM score ORDER BY id`)
	return scores, err
}
