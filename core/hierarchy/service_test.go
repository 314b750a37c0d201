package hierarchy_test

import (
	"context"
	"testing"

	"github.com/volatiletech/null/v8"

	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/hierarchy"
	"github.com/rkabuya/evaldesk/storage/database/dummy"
)

func newSvc(t *testing.T) (*hierarchy.Service, hierarchy.Repository) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	repo := dummydb.NewHierarchyRepository(db)
	return hierarchy.NewService(db, repo), repo
}

func fl(v float64) *float64 { return &v }

func mustAxis(t *testing.T, svc *hierarchy.Service, name string) hierarchy.Axis {
	t.Helper()
	ax, err := svc.CreateAxis(context.Background(), hierarchy.NewAxis{Name: name})
	if err != nil {
		t.Fatalf("CreateAxis(%s): %v", name, err)
	}
	return ax
}

func mustIndicator(t *testing.T, svc *hierarchy.Service, axisID int, name string, weight float64) hierarchy.Indicator {
	t.Helper()
	ind, err := svc.CreateIndicator(context.Background(), hierarchy.NewIndicator{
		AxisID: axisID,
		Name:   name,
		Weight: fl(weight),
	})
	if err != nil {
		t.Fatalf("CreateIndicator(%s): %v", name, err)
	}
	return ind
}

func mustMeasure(t *testing.T, svc *hierarchy.Service, indicatorID int, name string, weight float64) hierarchy.Measure {
	t.Helper()
	m, err := svc.CreateMeasure(context.Background(), hierarchy.NewMeasure{
		IndicatorID: indicatorID,
		Name:        name,
		Weight:      fl(weight),
	})
	if err != nil {
		t.Fatalf("CreateMeasure(%s): %v", name, err)
	}
	return m
}

func isValidationError(err error) bool {
	_, ok := err.(*core.ValidationError)
	return ok
}

func TestService_directScoreLifecycle(t *testing.T) {
	svc, repo := newSvc(t)
	ctx := context.Background()

	ax := mustAxis(t, svc, "Governance")
	ind := mustIndicator(t, svc, ax.ID, "Transparency", 0.5)
	if !ind.AllowDirectScore {
		t.Fatal("a fresh indicator without measures must allow direct scores")
	}

	// an active measure revokes the allowance
	m := mustMeasure(t, svc, ind.ID, "Reports published", 1)
	ind, err := svc.UpdateIndicator(ctx, ind.ID, hierarchy.UpdateIndicator{
		AxisID: ax.ID, Name: "Transparency", Weight: fl(0.5),
	})
	if err != nil {
		t.Fatalf("UpdateIndicator(): %v", err)
	}
	if ind.AllowDirectScore {
		t.Fatal("an indicator with an active measure must not allow direct scores")
	}

	// deactivating the only measure restores it
	if _, err = svc.ToggleMeasure(ctx, m.ID); err != nil {
		t.Fatalf("ToggleMeasure(): %v", err)
	}
	gotInd, err := repo.GetIndicatorByID(ctx, ind.ID)
	if err != nil {
		t.Fatalf("GetIndicatorByID(): %v", err)
	}
	if !gotInd.AllowDirectScore {
		t.Fatal("deactivating the only measure must restore the direct-score allowance")
	}

	// reactivating revokes it again
	if _, err = svc.ToggleMeasure(ctx, m.ID); err != nil {
		t.Fatalf("ToggleMeasure(): %v", err)
	}
	if gotInd, _ = repo.GetIndicatorByID(ctx, ind.ID); gotInd.AllowDirectScore {
		t.Fatal("reactivating the measure must revoke the direct-score allowance")
	}

	// deleting the measure restores it
	if err = svc.DeleteMeasure(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMeasure(): %v", err)
	}
	if gotInd, _ = repo.GetIndicatorByID(ctx, ind.ID); !gotInd.AllowDirectScore {
		t.Fatal("deleting the only measure must restore the direct-score allowance")
	}

	// an inactive indicator never allows direct scores
	if ind, err = svc.ToggleIndicator(ctx, ind.ID); err != nil {
		t.Fatalf("ToggleIndicator(): %v", err)
	}
	if ind.IsActive || ind.AllowDirectScore {
		t.Fatalf("inactive indicator: IsActive=%v AllowDirectScore=%v, want both false", ind.IsActive, ind.AllowDirectScore)
	}
}

func TestService_measureReparentingRefreshesBothIndicators(t *testing.T) {
	svc, repo := newSvc(t)
	ctx := context.Background()

	ax := mustAxis(t, svc, "Governance")
	src := mustIndicator(t, svc, ax.ID, "Transparency", 0.5)
	dst := mustIndicator(t, svc, ax.ID, "Integrity", 0.5)
	m := mustMeasure(t, svc, src.ID, "Reports published", 1)

	if _, err := svc.UpdateMeasure(ctx, m.ID, hierarchy.UpdateMeasure{
		IndicatorID: dst.ID, Name: m.Name, Weight: fl(1),
	}); err != nil {
		t.Fatalf("UpdateMeasure(): %v", err)
	}

	gotSrc, _ := repo.GetIndicatorByID(ctx, src.ID)
	gotDst, _ := repo.GetIndicatorByID(ctx, dst.ID)
	if !gotSrc.AllowDirectScore {
		t.Error("the orphaned indicator must regain the direct-score allowance")
	}
	if gotDst.AllowDirectScore {
		t.Error("the adopting indicator must lose the direct-score allowance")
	}
}

func TestService_nameUniqueness(t *testing.T) {
	svc, _ := newSvc(t)
	ctx := context.Background()

	ax := mustAxis(t, svc, "Governance")
	ind := mustIndicator(t, svc, ax.ID, "Transparency", 0.5)
	mustMeasure(t, svc, ind.ID, "Reports published", 1)

	// axis names clash case-insensitively
	if _, err := svc.CreateAxis(ctx, hierarchy.NewAxis{Name: "governance"}); !isValidationError(err) {
		t.Errorf("CreateAxis(duplicate) error = %v, want ValidationError", err)
	}
	// same for indicators within an axis and measures within an indicator
	if _, err := svc.CreateIndicator(ctx, hierarchy.NewIndicator{
		AxisID: ax.ID, Name: "TRANSPARENCY", Weight: fl(0.2),
	}); !isValidationError(err) {
		t.Errorf("CreateIndicator(duplicate) error = %v, want ValidationError", err)
	}
	if _, err := svc.CreateMeasure(ctx, hierarchy.NewMeasure{
		IndicatorID: ind.ID, Name: "reports PUBLISHED", Weight: fl(0.2),
	}); !isValidationError(err) {
		t.Errorf("CreateMeasure(duplicate) error = %v, want ValidationError", err)
	}

	// renaming to itself stays allowed
	if _, err := svc.UpdateAxis(ctx, ax.ID, hierarchy.UpdateAxis{Name: "Governance"}); err != nil {
		t.Errorf("UpdateAxis(same name) error = %v", err)
	}
}

func TestService_scoreableItems(t *testing.T) {
	svc, _ := newSvc(t)
	ctx := context.Background()

	ax := mustAxis(t, svc, "Governance")
	direct := mustIndicator(t, svc, ax.ID, "Integrity", 0.4)
	parent := mustIndicator(t, svc, ax.ID, "Transparency", 0.6)
	mustMeasure(t, svc, parent.ID, "Reports published", 0.7)
	mustMeasure(t, svc, parent.ID, "Meetings held", 0.3)

	items, err := svc.ScoreableItems(ctx)
	if err != nil {
		t.Fatalf("ScoreableItems(): %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}

	// measures first in hierarchy order, direct indicators last
	wantNames := []string{
		"Governance / Transparency / Reports published",
		"Governance / Transparency / Meetings held",
		"Governance / Integrity (direct)",
	}
	for i, want := range wantNames {
		if items[i].DisplayName != want {
			t.Errorf("items[%d].DisplayName = %q, want %q", i, items[i].DisplayName, want)
		}
	}
	if items[0].Kind != hierarchy.KindMeasure || items[2].Kind != hierarchy.KindIndicator {
		t.Errorf("kinds = [%s %s %s]", items[0].Kind, items[1].Kind, items[2].Kind)
	}
	if items[2].ID != direct.ID || items[2].IndicatorID != direct.ID {
		t.Errorf("direct item ids = (%d, %d), want both %d", items[2].ID, items[2].IndicatorID, direct.ID)
	}
}

func TestDuplicateDisplayNames(t *testing.T) {
	items := []hierarchy.ScoreableItem{
		{DisplayName: "A / B / C"},
		{DisplayName: "A / B / D"},
		{DisplayName: "A / B / C"},
	}
	dups := hierarchy.DuplicateDisplayNames(items)
	if len(dups) != 1 || dups[0] != "A / B / C" {
		t.Errorf("DuplicateDisplayNames() = %v, want [A / B / C]", dups)
	}
	if dups = hierarchy.DuplicateDisplayNames(items[:2]); dups != nil {
		t.Errorf("DuplicateDisplayNames() = %v, want nil", dups)
	}
}

func TestService_tree(t *testing.T) {
	svc, _ := newSvc(t)
	ctx := context.Background()

	ax := mustAxis(t, svc, "Governance")
	ind := mustIndicator(t, svc, ax.ID, "Transparency", 0.5)
	mustMeasure(t, svc, ind.ID, "Reports published", 1)
	mustAxis(t, svc, "Finance")

	tree, err := svc.Tree(ctx)
	if err != nil {
		t.Fatalf("Tree(): %v", err)
	}
	if len(tree) != 2 {
		t.Fatalf("len(tree) = %d, want 2", len(tree))
	}
	if tree[0].Name != "Finance" || tree[1].Name != "Governance" {
		t.Fatalf("axes = [%s %s], want sorted [Finance Governance]", tree[0].Name, tree[1].Name)
	}
	if len(tree[0].Indicators) != 0 {
		t.Errorf("Finance indicators = %d, want 0", len(tree[0].Indicators))
	}
	gov := tree[1]
	if len(gov.Indicators) != 1 || len(gov.Indicators[0].Measures) != 1 {
		t.Fatalf("Governance tree = %+v, want 1 indicator with 1 measure", gov.Indicators)
	}
}

func TestService_import(t *testing.T) {
	weight := func(v float64) null.Float64 { return null.Float64From(v) }

	t.Run("creates the whole hierarchy", func(t *testing.T) {
		svc, _ := newSvc(t)
		rows := []hierarchy.ImportRow{
			{Line: 2, Level: "axis", Name: "Governance"},
			{Line: 3, Level: "indicator", Name: "Transparency", ParentName: "Governance", Weight: weight(0.6)},
			{Line: 4, Level: "measure", Name: "Reports published", ParentName: "Transparency", Weight: weight(1)},
			{Line: 5, Level: "indicator", Name: "Integrity", ParentName: "Governance", Weight: weight(0.4)},
		}
		res, err := svc.Import(context.Background(), rows)
		if err != nil {
			t.Fatalf("Import(): %v", err)
		}
		if res.Added != 4 || len(res.RowErrors) != 0 {
			t.Fatalf("Import() = %+v, want 4 added and no row errors", res)
		}

		items, err := svc.ScoreableItems(context.Background())
		if err != nil {
			t.Fatalf("ScoreableItems(): %v", err)
		}
		// Transparency gained a measure, Integrity stays directly scoreable
		if len(items) != 2 {
			t.Fatalf("len(items) = %d, want 2", len(items))
		}
	})

	t.Run("skips existing items", func(t *testing.T) {
		svc, _ := newSvc(t)
		ax := mustAxis(t, svc, "Governance")
		mustIndicator(t, svc, ax.ID, "Transparency", 0.6)

		rows := []hierarchy.ImportRow{
			{Line: 2, Level: "axis", Name: "Governance"},
			{Line: 3, Level: "indicator", Name: "Transparency", ParentName: "Governance", Weight: weight(0.6)},
			{Line: 4, Level: "indicator", Name: "Integrity", ParentName: "Governance", Weight: weight(0.4)},
		}
		res, err := svc.Import(context.Background(), rows)
		if err != nil {
			t.Fatalf("Import(): %v", err)
		}
		if res.Added != 1 {
			t.Errorf("Added = %d, want 1", res.Added)
		}
	})

	t.Run("row errors roll everything back", func(t *testing.T) {
		svc, _ := newSvc(t)
		rows := []hierarchy.ImportRow{
			{Line: 2, Level: "axis", Name: "Governance"},
			{Line: 3, Level: "indicator", Name: "Transparency", ParentName: "Governance"}, // missing weight
			{Line: 4, Level: "indicator", Name: "Integrity", ParentName: "Missing", Weight: weight(0.4)},
			{Line: 5, Level: "volcano", Name: "Lava"},
		}
		res, err := svc.Import(context.Background(), rows)
		if err != nil {
			t.Fatalf("Import(): %v", err)
		}
		if res.Added != 0 {
			t.Errorf("Added = %d, want 0 after rollback", res.Added)
		}
		if len(res.RowErrors) != 3 {
			t.Fatalf("RowErrors = %+v, want 3", res.RowErrors)
		}
		for i, line := range []int{3, 4, 5} {
			if res.RowErrors[i].Line != line {
				t.Errorf("RowErrors[%d].Line = %d, want %d", i, res.RowErrors[i].Line, line)
			}
		}

		tree, err := svc.Tree(context.Background())
		if err != nil {
			t.Fatalf("Tree(): %v", err)
		}
		if len(tree) != 0 {
			t.Errorf("tree = %+v, want empty after rollback", tree)
		}
	})

	t.Run("out-of-range weight is a row error", func(t *testing.T) {
		svc, _ := newSvc(t)
		rows := []hierarchy.ImportRow{
			{Line: 2, Level: "axis", Name: "Governance"},
			{Line: 3, Level: "indicator", Name: "Transparency", ParentName: "Governance", Weight: weight(1.5)},
		}
		res, err := svc.Import(context.Background(), rows)
		if err != nil {
			t.Fatalf("Import(): %v", err)
		}
		if res.Added != 0 || len(res.RowErrors) != 1 || res.RowErrors[0].Line != 3 {
			t.Errorf("Import() = %+v, want rollback with one error on line 3", res)
		}
	})
}
