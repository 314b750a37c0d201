package participant

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core"
)

// RowError ties a score-import failure to its spreadsheet line.
type RowError struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

func (re RowError) Error() string {
	return fmt.Sprintf("line %d: %s", re.Line, re.Err)
}

// ImportResult reports what a score import did.
type ImportResult struct {
	Processed int        `json:"processed"`
	RowErrors []RowError `json:"row_errors,omitempty"`
}

var errImportAborted = errors.New("score import aborted")

func validImportPhone(phone string) bool {
	if len(phone) < 2 || phone[0] != '0' {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ImportScores records spreadsheet rows of scores; row values are keyed by
// scoreable-item display name (the spreadsheet layer already dropped unknown
// columns). Unknown participants are created on the fly. The whole upload is
// one transaction: any row error rolls everything back.
func (svc *Service) ImportScores(ctx context.Context, rows []ScoreImportRow) (ImportResult, error) {
	items, err := svc.items.ScoreableItems(ctx)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	err = svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		now := time.Now().UTC()

		fail := func(line int, format string, args ...interface{}) {
			res.RowErrors = append(res.RowErrors, RowError{Line: line, Err: fmt.Sprintf(format, args...)})
		}

		for _, row := range rows {
			phone := core.CleanString(row.Phone)
			name := core.CleanString(row.Name)
			if phone == "" || name == "" {
				fail(row.Line, "phone and name are required")
				continue
			}
			if !validImportPhone(phone) {
				fail(row.Line, "invalid phone number format %q", phone)
				continue
			}

			rowOK := true
			for _, item := range items {
				value, ok := row.Values[item.DisplayName]
				if !ok {
					continue
				}
				if value < 0 || value > 5 {
					fail(row.Line, "%q: score %v is out of range [0, 5]", item.DisplayName, value)
					rowOK = false
				}
			}
			if !rowOK {
				continue
			}

			p, err := svc.repo.GetParticipant(ctx, phone, tx)
			switch errors.Cause(err) {
			case nil:
				if p.Name != name {
					p.Name = name
					if _, err = svc.repo.UpdateParticipant(ctx, p, tx); err != nil {
						return errors.Wrap(err, "updating participant")
					}
				}
			case ErrNotFound:
				if p, err = svc.repo.CreateParticipant(ctx, Participant{
					Phone:     phone,
					Name:      name,
					CreatedAt: now,
				}, tx); err != nil {
					return errors.Wrap(err, "creating participant")
				}
			default:
				return errors.Wrap(err, "getting participant")
			}

			for _, item := range items {
				value, ok := row.Values[item.DisplayName]
				if !ok {
					continue
				}
				mID, iID := scoreTarget(item)
				existing, err := svc.repo.GetScoreForTarget(ctx, phone, mID, iID, tx)
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
						ParticipantPhone: phone,
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
			res.Processed++
		}

		if len(res.RowErrors) > 0 {
			return errImportAborted
		}
		return nil
	})

	if errors.Cause(err) == errImportAborted {
		res.Processed = 0
		return res, nil
	}
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}
