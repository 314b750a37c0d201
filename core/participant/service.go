package participant

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/hierarchy"
)

var (
	// errors
	ErrNotFound      = errors.New("participant not found")
	ErrScoreNotFound = errors.New("score not found")
	ErrPhoneExists   = errors.New("a participant with this phone number already exists")
)

type (
	Repository interface {
		CreateParticipant(ctx context.Context, p Participant, exec ...core.DBExecutor) (Participant, error)
		GetParticipant(ctx context.Context, phone string, exec ...core.DBExecutor) (Participant, error)
		// QueryParticipants returns a page of participants (newest first) and
		// the total count.
		QueryParticipants(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Participant, int, error)
		CountParticipants(ctx context.Context, exec ...core.DBExecutor) (int, error)
		UpdateParticipant(ctx context.Context, p Participant, exec ...core.DBExecutor) (Participant, error)
		// DeleteParticipant cascades to the participant's scores.
		DeleteParticipant(ctx context.Context, phone string, exec ...core.DBExecutor) error
		// DeleteAllParticipants removes every participant and score; it
		// returns how many of each were deleted.
		DeleteAllParticipants(ctx context.Context, exec ...core.DBExecutor) (participants, scores int, err error)
		QueryAttachmentFilenames(ctx context.Context, exec ...core.DBExecutor) ([]string, error)

		// GetScoreForTarget returns the single score of (participant, target),
		// or ErrScoreNotFound. Exactly one of measureID/indicatorID is set.
		GetScoreForTarget(ctx context.Context, phone string, measureID, indicatorID null.Int, exec ...core.DBExecutor) (Score, error)
		CreateScore(ctx context.Context, s Score, exec ...core.DBExecutor) (Score, error)
		UpdateScoreValue(ctx context.Context, id int, value float64, ts time.Time, exec ...core.DBExecutor) error
		QueryScoresByParticipant(ctx context.Context, phone string, exec ...core.DBExecutor) ([]Score, error)
		QueryAllScores(ctx context.Context, exec ...core.DBExecutor) ([]Score, error)
	}

	// FileStore is any store that can keep participant attachments.
	FileStore interface {
		Save(name string, r io.Reader) error
		Open(name string) (io.ReadCloser, error)
		Delete(name string) error
	}

	// ItemResolver produces the current list of scoreable items; satisfied by
	// hierarchy.Service.
	ItemResolver interface {
		ScoreableItems(ctx context.Context) ([]hierarchy.ScoreableItem, error)
	}

	Service struct {
		atomic core.DBTransactionner
		repo   Repository
		items  ItemResolver
		files  FileStore
	}
)

func NewService(atomic core.DBTransactionner, repo Repository, items ItemResolver, files FileStore) *Service {
	return &Service{atomic: atomic, repo: repo, items: items, files: files}
}

func (svc *Service) Get(ctx context.Context, phone string) (Participant, error) {
	return svc.repo.GetParticipant(ctx, core.CleanString(phone))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Participant, int, error) {
	filter.Clean()
	return svc.repo.QueryParticipants(ctx, filter)
}

// Sheet is the dynamic score form for one (possibly missing) participant:
// the resolver's ordered items plus the participant's current values keyed
// by display name.
type Sheet struct {
	Participant *Participant              `json:"participant,omitempty"`
	Items       []hierarchy.ScoreableItem `json:"items"`
	Values      map[string]float64        `json:"values"`
}

func scoreTarget(item hierarchy.ScoreableItem) (measureID, indicatorID null.Int) {
	if item.Kind == hierarchy.KindMeasure {
		return null.IntFrom(item.ID), null.Int{}
	}
	return null.Int{}, null.IntFrom(item.ID)
}

// Sheet returns the score form for phone; pass an empty phone for a blank
// form (new participant).
func (svc *Service) Sheet(ctx context.Context, phone string) (Sheet, error) {
	items, err := svc.items.ScoreableItems(ctx)
	if err != nil {
		return Sheet{}, err
	}
	sheet := Sheet{Items: items, Values: make(map[string]float64)}
	if phone == "" {
		return sheet, nil
	}

	p, err := svc.repo.GetParticipant(ctx, phone)
	if err != nil {
		return Sheet{}, err
	}
	sheet.Participant = &p

	scores, err := svc.repo.QueryScoresByParticipant(ctx, phone)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "querying participant scores")
	}
	byTarget := make(map[[2]int]float64, len(scores))
	for _, s := range scores {
		key := [2]int{int(s.MeasureID.Int), int(s.IndicatorID.Int)}
		byTarget[key] = s.Value
	}
	for _, item := range items {
		mID, iID := scoreTarget(item)
		if v, ok := byTarget[[2]int{int(mID.Int), int(iID.Int)}]; ok {
			sheet.Values[item.DisplayName] = v
		}
	}
	return sheet, nil
}

// SaveSheet records a participant's scores in one transaction. When isNew is
// set the participant must not exist yet; otherwise it must. Score keys are
// display names of current scoreable items; missing items stay unscored, and
// unknown keys reject the whole sheet. Each (participant, target) pair keeps
// at most one Score: the write path checks before writing.
func (svc *Service) SaveSheet(ctx context.Context, sheet ScoreSheet, isNew bool) (Participant, error) {
	items, err := svc.items.ScoreableItems(ctx)
	if err != nil {
		return Participant{}, err
	}
	byName := make(map[string]hierarchy.ScoreableItem, len(items))
	for _, item := range items {
		byName[item.DisplayName] = item
	}
	var fldErrs []core.FieldError
	for name := range sheet.Scores {
		if _, ok := byName[name]; !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: name, Error: "unknown scoreable item"})
		}
	}
	if fldErrs != nil {
		sort.Slice(fldErrs, func(i, j int) bool { return fldErrs[i].Field < fldErrs[j].Field })
		return Participant{}, core.NewValidationError(errors.New("unknown scoreable items"), fldErrs...)
	}

	var p Participant
	err = svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		now := time.Now().UTC()

		existing, err := svc.repo.GetParticipant(ctx, sheet.Phone, tx)
		switch errors.Cause(err) {
		case nil:
			if isNew {
				return core.NewValidationError(ErrPhoneExists, core.FieldError{Field: "phone", Error: ErrPhoneExists.Error()})
			}
			if existing.Name != sheet.Name {
				existing.Name = sheet.Name
				if existing, err = svc.repo.UpdateParticipant(ctx, existing, tx); err != nil {
					return errors.Wrap(err, "updating participant")
				}
			}
			p = existing
		case ErrNotFound:
			if !isNew {
				return err
			}
			if p, err = svc.repo.CreateParticipant(ctx, Participant{
				Phone:     sheet.Phone,
				Name:      sheet.Name,
				CreatedAt: now,
			}, tx); err != nil {
				return errors.Wrap(err, "creating participant")
			}
		default:
			return errors.Wrap(err, "getting participant")
		}

		// walk in resolver order for deterministic writes
		for _, item := range items {
			value, ok := sheet.Scores[item.DisplayName]
			if !ok {
				continue
			}
			mID, iID := scoreTarget(item)
			existing, err := svc.repo.GetScoreForTarget(ctx, p.Phone, mID, iID, tx)
			switch errors.Cause(err) {
			case nil:
				if existing.Value != value {
					if err = svc.repo.UpdateScoreValue(ctx, existing.ID, value, now, tx); err != nil {
						return errors.Wrap(err, "updating score")
					}
				}
			case ErrScoreNotFound:
				if _, err = svc.repo.CreateScore(ctx, Score{
					Value:            value,
					ParticipantPhone: p.Phone,
					MeasureID:        mID,
					IndicatorID:      iID,
					Timestamp:        now,
				}, tx); err != nil {
					return errors.Wrap(err, "creating score")
				}
			default:
				return errors.Wrap(err, "getting score")
			}
		}
		return nil
	})
	if err != nil {
		return Participant{}, err
	}
	return p, nil
}

// Delete removes a participant and their scores; the attachment file goes too.
func (svc *Service) Delete(ctx context.Context, phone string) error {
	p, err := svc.repo.GetParticipant(ctx, phone)
	if err != nil {
		return err
	}
	if err = svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		return errors.Wrap(svc.repo.DeleteParticipant(ctx, phone, tx), "deleting participant")
	}); err != nil {
		return err
	}
	if p.AttachmentFilename.Valid {
		// the record is gone; a leftover file is not worth failing the request
		_ = svc.files.Delete(p.AttachmentFilename.String)
	}
	return nil
}

// DeleteAllResult reports what DeleteAll removed.
type DeleteAllResult struct {
	Participants int `json:"participants"`
	Scores       int `json:"scores"`
	Attachments  int `json:"attachments"`
}

// DeleteAll wipes every participant, their scores and attachment files.
func (svc *Service) DeleteAll(ctx context.Context) (DeleteAllResult, error) {
	var res DeleteAllResult

	filenames, err := svc.repo.QueryAttachmentFilenames(ctx)
	if err != nil {
		return res, errors.Wrap(err, "querying attachment filenames")
	}
	if err = svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		var err error
		res.Participants, res.Scores, err = svc.repo.DeleteAllParticipants(ctx, tx)
		return errors.Wrap(err, "deleting all participants")
	}); err != nil {
		return DeleteAllResult{}, err
	}
	for _, name := range filenames {
		if err := svc.files.Delete(name); err == nil {
			res.Attachments++
		}
	}
	return res, nil
}
