package participant

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/rkabuya/evaldesk/core"
)

// Participant is keyed by phone number; it may carry at most one attachment
// at a time.
type Participant struct {
	Phone              string      `db:"phone" json:"phone"`
	Name               string      `db:"name" json:"name"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"` // UTC
	AttachmentFilename null.String `db:"attachment_filename" json:"attachment_filename,omitempty"`
}

// Score ties a Participant to exactly one of a Measure or an Indicator
// (never both, never neither).
type Score struct {
	ID               int       `db:"id" json:"id"`
	Value            float64   `db:"value" json:"value"`
	ParticipantPhone string    `db:"participant_phone" json:"participant_phone"`
	MeasureID        null.Int  `db:"measure_id" json:"measure_id,omitempty"`
	IndicatorID      null.Int  `db:"indicator_id" json:"indicator_id,omitempty"`
	Timestamp        time.Time `db:"ts" json:"timestamp"` // UTC, last write
}

// TargetValid reports whether exactly one of MeasureID/IndicatorID is set.
func (s Score) TargetValid() bool {
	return s.MeasureID.Valid != s.IndicatorID.Valid
}

// ScoreSheet is the dynamic score form: participant info plus one value per
// scoreable-item display name.
type ScoreSheet struct {
	Phone  string             `json:"phone" validate:"required,phone"`
	Name   string             `json:"name" validate:"required"`
	Scores map[string]float64 `json:"scores" validate:"required,dive,score"`
}

func (ss *ScoreSheet) Validate(validate *validator.Validate) error {
	ss.Phone = core.CleanString(ss.Phone)
	ss.Name = core.CleanString(ss.Name)
	return validate.Struct(ss)
}

// ScoreImportRow is one normalized spreadsheet row of a score upload:
// participant info plus the values of the recognized score columns.
type ScoreImportRow struct {
	Line   int
	Phone  string
	Name   string
	Values map[string]float64
}

// QueryFilter narrows and pages the participant list.
type QueryFilter struct {
	Search string `query:"search"`
	Page   int    `query:"page"`
	Size   int    `query:"size"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	if qf.Page < 1 {
		qf.Page = 1
	}
	if qf.Size < 1 || qf.Size > 100 {
		qf.Size = 15
	}
}
