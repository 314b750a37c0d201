// Package setting stores small editable text snippets keyed by name,
// such as the help text shown on the participant results page.
package setting

import (
	"context"

	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core"
)

var ErrNotFound = errors.New("setting not found")

// ParticipantHelpKey holds the explanatory text shown to participants
// alongside their results.
const ParticipantHelpKey = "participant_results_help"

// defaults are served when a key was never saved.
var defaults = map[string]string{
	ParticipantHelpKey: "Your scores are aggregated into indicator and axis results " +
		"using the configured weights. A score of 0 means no evaluation was recorded.",
}

type (
	Setting struct {
		Key   string `db:"key" json:"key"`
		Value string `db:"value" json:"value"`
	}

	Repository interface {
		GetSetting(ctx context.Context, key string, exec ...core.DBExecutor) (Setting, error)
		UpsertSetting(ctx context.Context, s Setting, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the stored value for key, falling back to the built-in
// default when none was ever saved.
func (svc *Service) Get(ctx context.Context, key string) (string, error) {
	s, err := svc.repo.GetSetting(ctx, key)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return defaults[key], nil
		}
		return "", errors.Wrap(err, "getting setting")
	}
	return s.Value, nil
}

func (svc *Service) Set(ctx context.Context, key, value string) error {
	return errors.Wrap(svc.repo.UpsertSetting(ctx, Setting{Key: key, Value: value}), "saving setting")
}
