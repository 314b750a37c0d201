package setting_test

import (
	"context"
	"testing"

	"github.com/rkabuya/evaldesk/core/setting"
	"github.com/rkabuya/evaldesk/storage/database/dummy"
)

func TestService_getAndSet(t *testing.T) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	svc := setting.NewService(dummydb.NewSettingRepository(db))
	ctx := context.Background()

	// an unsaved known key falls back to its built-in default
	help, err := svc.Get(ctx, setting.ParticipantHelpKey)
	if err != nil {
		t.Fatalf("Get(): %v", err)
	}
	if help == "" {
		t.Fatal("the participant help text must have a default")
	}

	// an unsaved unknown key reads as empty
	if v, err := svc.Get(ctx, "nonsense"); err != nil || v != "" {
		t.Errorf("Get(unknown) = (%q, %v), want empty", v, err)
	}

	// saved values win over defaults
	if err = svc.Set(ctx, setting.ParticipantHelpKey, "Call us with questions."); err != nil {
		t.Fatalf("Set(): %v", err)
	}
	if v, _ := svc.Get(ctx, setting.ParticipantHelpKey); v != "Call us with questions." {
		t.Errorf("Get() = %q after Set", v)
	}

	// and can be overwritten
	if err = svc.Set(ctx, setting.ParticipantHelpKey, "Updated."); err != nil {
		t.Fatalf("Set(again): %v", err)
	}
	if v, _ := svc.Get(ctx, setting.ParticipantHelpKey); v != "Updated." {
		t.Errorf("Get() = %q after second Set", v)
	}
}
