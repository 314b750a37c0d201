package participant_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/hierarchy"
	"github.com/rkabuya/evaldesk/core/participant"
	"github.com/rkabuya/evaldesk/storage/database/dummy"
	"github.com/rkabuya/evaldesk/storage/files"
)

const (
	measureKey = "Governance / Transparency / Reports published"
	directKey  = "Governance / Integrity (direct)"
)

func fl(v float64) *float64 { return &v }

// setup seeds one axis with a measure-backed indicator and a directly-scored
// one, so sheets carry the two display-name keys above.
func setup(t *testing.T) (*participant.Service, participant.Repository) {
	t.Helper()
	ctx := context.Background()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	hierSvc := hierarchy.NewService(db, dummydb.NewHierarchyRepository(db))

	ax, err := hierSvc.CreateAxis(ctx, hierarchy.NewAxis{Name: "Governance"})
	if err != nil {
		t.Fatalf("CreateAxis(): %v", err)
	}
	trans, err := hierSvc.CreateIndicator(ctx, hierarchy.NewIndicator{
		AxisID: ax.ID, Name: "Transparency", Weight: fl(0.6),
	})
	if err != nil {
		t.Fatalf("CreateIndicator(): %v", err)
	}
	if _, err = hierSvc.CreateMeasure(ctx, hierarchy.NewMeasure{
		IndicatorID: trans.ID, Name: "Reports published", Weight: fl(1),
	}); err != nil {
		t.Fatalf("CreateMeasure(): %v", err)
	}
	if _, err = hierSvc.CreateIndicator(ctx, hierarchy.NewIndicator{
		AxisID: ax.ID, Name: "Integrity", Weight: fl(0.4),
	}); err != nil {
		t.Fatalf("CreateIndicator(): %v", err)
	}

	store, err := files.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("files.NewStore(): %v", err)
	}
	repo := dummydb.NewParticipantRepository(db)
	return participant.NewService(db, repo, hierSvc, store), repo
}

func isValidationError(err error) bool {
	_, ok := err.(*core.ValidationError)
	return ok
}

func TestService_SaveSheet(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	p, err := svc.SaveSheet(ctx, participant.ScoreSheet{
		Phone:  "0811111111",
		Name:   "Ada",
		Scores: map[string]float64{measureKey: 4, directKey: 2.5},
	}, true)
	if err != nil {
		t.Fatalf("SaveSheet(new): %v", err)
	}
	if p.Phone != "0811111111" || p.Name != "Ada" {
		t.Fatalf("participant = %+v", p)
	}

	sheet, err := svc.Sheet(ctx, p.Phone)
	if err != nil {
		t.Fatalf("Sheet(): %v", err)
	}
	if len(sheet.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(sheet.Items))
	}
	if sheet.Values[measureKey] != 4 || sheet.Values[directKey] != 2.5 {
		t.Fatalf("Values = %v", sheet.Values)
	}

	// re-saving updates in place, no duplicate score rows
	if _, err = svc.SaveSheet(ctx, participant.ScoreSheet{
		Phone:  "0811111111",
		Name:   "Ada L.",
		Scores: map[string]float64{measureKey: 3},
	}, false); err != nil {
		t.Fatalf("SaveSheet(update): %v", err)
	}
	scores, err := repo.QueryScoresByParticipant(ctx, p.Phone)
	if err != nil {
		t.Fatalf("QueryScoresByParticipant(): %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("len(scores) = %d, want 2", len(scores))
	}
	got, err := svc.Get(ctx, p.Phone)
	if err != nil {
		t.Fatalf("Get(): %v", err)
	}
	if got.Name != "Ada L." {
		t.Errorf("Name = %q, want renamed", got.Name)
	}
	sheet, _ = svc.Sheet(ctx, p.Phone)
	if sheet.Values[measureKey] != 3 || sheet.Values[directKey] != 2.5 {
		t.Errorf("Values after update = %v", sheet.Values)
	}
}

func TestService_SaveSheet_errors(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	if _, err := svc.SaveSheet(ctx, participant.ScoreSheet{
		Phone: "0811111111", Name: "Ada",
	}, true); err != nil {
		t.Fatalf("SaveSheet(): %v", err)
	}

	// a second creation with the same phone is rejected
	_, err := svc.SaveSheet(ctx, participant.ScoreSheet{Phone: "0811111111", Name: "Twin"}, true)
	if !isValidationError(err) {
		t.Errorf("SaveSheet(duplicate phone) error = %v, want ValidationError", err)
	}

	// updating a missing participant fails
	_, err = svc.SaveSheet(ctx, participant.ScoreSheet{Phone: "0899999999", Name: "Ghost"}, false)
	if errors.Cause(err) != participant.ErrNotFound {
		t.Errorf("SaveSheet(missing) error = %v, want %v", err, participant.ErrNotFound)
	}

	// unknown display names reject the whole sheet
	_, err = svc.SaveSheet(ctx, participant.ScoreSheet{
		Phone: "0822222222", Name: "Ben",
		Scores: map[string]float64{"Nope / Nope / Nope": 1, measureKey: 2},
	}, true)
	vErr, ok := err.(*core.ValidationError)
	if !ok {
		t.Fatalf("SaveSheet(unknown key) error = %v, want ValidationError", err)
	}
	if len(vErr.Fields) != 1 || vErr.Fields[0].Field != "Nope / Nope / Nope" {
		t.Errorf("Fields = %+v", vErr.Fields)
	}
	// nothing was written
	if _, err = svc.Get(ctx, "0822222222"); errors.Cause(err) != participant.ErrNotFound {
		t.Errorf("participant must not exist after a rejected sheet, got err %v", err)
	}
}

func TestService_ImportScores(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	t.Run("creates unknown participants", func(t *testing.T) {
		res, err := svc.ImportScores(ctx, []participant.ScoreImportRow{
			{Line: 2, Phone: "0811111111", Name: "Ada", Values: map[string]float64{measureKey: 4}},
			{Line: 3, Phone: "0822222222", Name: "Ben", Values: map[string]float64{directKey: 3}},
		})
		if err != nil {
			t.Fatalf("ImportScores(): %v", err)
		}
		if res.Processed != 2 || len(res.RowErrors) != 0 {
			t.Fatalf("res = %+v, want 2 processed", res)
		}
		sheet, err := svc.Sheet(ctx, "0811111111")
		if err != nil {
			t.Fatalf("Sheet(): %v", err)
		}
		if sheet.Values[measureKey] != 4 {
			t.Errorf("Values = %v", sheet.Values)
		}
	})

	t.Run("row errors roll everything back", func(t *testing.T) {
		res, err := svc.ImportScores(ctx, []participant.ScoreImportRow{
			{Line: 2, Phone: "0833333333", Name: "Cy", Values: map[string]float64{measureKey: 2}},
			{Line: 3, Phone: "12345", Name: "BadPhone"},
			{Line: 4, Phone: "0844444444", Name: "Dee", Values: map[string]float64{measureKey: 7}},
			{Line: 5, Phone: "0855555555", Name: ""},
		})
		if err != nil {
			t.Fatalf("ImportScores(): %v", err)
		}
		if res.Processed != 0 {
			t.Errorf("Processed = %d, want 0 after rollback", res.Processed)
		}
		if len(res.RowErrors) != 3 {
			t.Fatalf("RowErrors = %+v, want 3", res.RowErrors)
		}
		for i, line := range []int{3, 4, 5} {
			if res.RowErrors[i].Line != line {
				t.Errorf("RowErrors[%d].Line = %d, want %d", i, res.RowErrors[i].Line, line)
			}
		}
		// the valid first row must not survive
		if _, err = svc.Get(ctx, "0833333333"); errors.Cause(err) != participant.ErrNotFound {
			t.Errorf("participant 0833333333 must not exist after rollback, got err %v", err)
		}
	})

	t.Run("updates existing participants in place", func(t *testing.T) {
		res, err := svc.ImportScores(ctx, []participant.ScoreImportRow{
			{Line: 2, Phone: "0811111111", Name: "Ada Lovelace", Values: map[string]float64{measureKey: 5}},
		})
		if err != nil {
			t.Fatalf("ImportScores(): %v", err)
		}
		if res.Processed != 1 {
			t.Fatalf("res = %+v", res)
		}
		p, err := svc.Get(ctx, "0811111111")
		if err != nil {
			t.Fatalf("Get(): %v", err)
		}
		if p.Name != "Ada Lovelace" {
			t.Errorf("Name = %q, want updated", p.Name)
		}
		sheet, _ := svc.Sheet(ctx, "0811111111")
		if sheet.Values[measureKey] != 5 {
			t.Errorf("Values = %v", sheet.Values)
		}
	})
}

func TestService_attachments(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	if _, err := svc.SaveSheet(ctx, participant.ScoreSheet{Phone: "0811111111", Name: "Ada"}, true); err != nil {
		t.Fatalf("SaveSheet(): %v", err)
	}

	// bad extension and empty name are rejected
	if _, err := svc.SetAttachment(ctx, "0811111111", "virus.exe", strings.NewReader("x")); !isValidationError(err) {
		t.Errorf("SetAttachment(exe) error = %v, want ValidationError", err)
	}
	if _, err := svc.SetAttachment(ctx, "0811111111", "...", strings.NewReader("x")); !isValidationError(err) {
		t.Errorf("SetAttachment(empty) error = %v, want ValidationError", err)
	}

	// path components and odd characters are stripped, the phone prefixes
	// the stored name
	p, err := svc.SetAttachment(ctx, "0811111111", "../../id card.pdf", strings.NewReader("scan"))
	if err != nil {
		t.Fatalf("SetAttachment(): %v", err)
	}
	if got := p.AttachmentFilename.String; got != "0811111111_id_card.pdf" {
		t.Fatalf("stored name = %q", got)
	}

	rc, err := svc.OpenAttachment(p.AttachmentFilename.String)
	if err != nil {
		t.Fatalf("OpenAttachment(): %v", err)
	}
	_ = rc.Close()
	if _, err = svc.OpenAttachment("../" + p.AttachmentFilename.String); err == nil {
		t.Error("OpenAttachment must refuse path traversal")
	}

	// a new upload replaces the old one
	p, err = svc.SetAttachment(ctx, "0811111111", "photo.png", strings.NewReader("img"))
	if err != nil {
		t.Fatalf("SetAttachment(replace): %v", err)
	}
	if p.AttachmentFilename.String != "0811111111_photo.png" {
		t.Fatalf("stored name = %q", p.AttachmentFilename.String)
	}
	if _, err = svc.OpenAttachment("0811111111_id_card.pdf"); err == nil {
		t.Error("the replaced attachment file must be gone")
	}

	p, err = svc.DeleteAttachment(ctx, "0811111111")
	if err != nil {
		t.Fatalf("DeleteAttachment(): %v", err)
	}
	if p.AttachmentFilename.Valid {
		t.Error("AttachmentFilename must be cleared")
	}
	if _, err = svc.DeleteAttachment(ctx, "0811111111"); errors.Cause(err) != participant.ErrNoAttachment {
		t.Errorf("DeleteAttachment(again) error = %v, want %v", err, participant.ErrNoAttachment)
	}
}

func TestService_Delete(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	if _, err := svc.SaveSheet(ctx, participant.ScoreSheet{
		Phone: "0811111111", Name: "Ada", Scores: map[string]float64{measureKey: 4},
	}, true); err != nil {
		t.Fatalf("SaveSheet(): %v", err)
	}
	if _, err := svc.SetAttachment(ctx, "0811111111", "photo.png", strings.NewReader("img")); err != nil {
		t.Fatalf("SetAttachment(): %v", err)
	}

	if err := svc.Delete(ctx, "0811111111"); err != nil {
		t.Fatalf("Delete(): %v", err)
	}
	if _, err := svc.Get(ctx, "0811111111"); errors.Cause(err) != participant.ErrNotFound {
		t.Errorf("Get() after delete error = %v, want %v", err, participant.ErrNotFound)
	}
	scores, err := repo.QueryAllScores(ctx)
	if err != nil {
		t.Fatalf("QueryAllScores(): %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("scores must cascade, got %d left", len(scores))
	}
	if _, err = svc.OpenAttachment("0811111111_photo.png"); err == nil {
		t.Error("attachment file must be removed with the participant")
	}

	if err = svc.Delete(ctx, "0811111111"); errors.Cause(err) != participant.ErrNotFound {
		t.Errorf("Delete(missing) error = %v, want %v", err, participant.ErrNotFound)
	}
}

// deleting hierarchy items takes their score rows along, like the schema's
// ON DELETE CASCADE does
func TestService_hierarchyDeletionCascadesScores(t *testing.T) {
	ctx := context.Background()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	hierSvc := hierarchy.NewService(db, dummydb.NewHierarchyRepository(db))

	ax, err := hierSvc.CreateAxis(ctx, hierarchy.NewAxis{Name: "Governance"})
	if err != nil {
		t.Fatalf("CreateAxis(): %v", err)
	}
	trans, err := hierSvc.CreateIndicator(ctx, hierarchy.NewIndicator{
		AxisID: ax.ID, Name: "Transparency", Weight: fl(0.6),
	})
	if err != nil {
		t.Fatalf("CreateIndicator(): %v", err)
	}
	m, err := hierSvc.CreateMeasure(ctx, hierarchy.NewMeasure{
		IndicatorID: trans.ID, Name: "Reports published", Weight: fl(1),
	})
	if err != nil {
		t.Fatalf("CreateMeasure(): %v", err)
	}
	if _, err = hierSvc.CreateIndicator(ctx, hierarchy.NewIndicator{
		AxisID: ax.ID, Name: "Integrity", Weight: fl(0.4),
	}); err != nil {
		t.Fatalf("CreateIndicator(): %v", err)
	}

	store, err := files.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("files.NewStore(): %v", err)
	}
	repo := dummydb.NewParticipantRepository(db)
	svc := participant.NewService(db, repo, hierSvc, store)

	if _, err = svc.SaveSheet(ctx, participant.ScoreSheet{
		Phone: "0811111111", Name: "Ada", Scores: map[string]float64{measureKey: 4, directKey: 2.5},
	}, true); err != nil {
		t.Fatalf("SaveSheet(): %v", err)
	}

	if err = hierSvc.DeleteMeasure(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMeasure(): %v", err)
	}
	scores, err := repo.QueryScoresByParticipant(ctx, "0811111111")
	if err != nil {
		t.Fatalf("QueryScoresByParticipant(): %v", err)
	}
	if len(scores) != 1 || !scores[0].IndicatorID.Valid {
		t.Fatalf("scores after measure delete = %+v, want the direct score only", scores)
	}

	if err = hierSvc.DeleteAxis(ctx, ax.ID); err != nil {
		t.Fatalf("DeleteAxis(): %v", err)
	}
	if scores, err = repo.QueryScoresByParticipant(ctx, "0811111111"); err != nil {
		t.Fatalf("QueryScoresByParticipant(): %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("scores after axis delete = %+v, want none", scores)
	}
}

func TestService_DeleteAll(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	for _, p := range []struct{ phone, name string }{
		{"0811111111", "Ada"}, {"0822222222", "Ben"},
	} {
		if _, err := svc.SaveSheet(ctx, participant.ScoreSheet{
			Phone: p.phone, Name: p.name, Scores: map[string]float64{measureKey: 1, directKey: 2},
		}, true); err != nil {
			t.Fatalf("SaveSheet(%s): %v", p.phone, err)
		}
	}
	if _, err := svc.SetAttachment(ctx, "0811111111", "photo.png", strings.NewReader("img")); err != nil {
		t.Fatalf("SetAttachment(): %v", err)
	}

	res, err := svc.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll(): %v", err)
	}
	if res.Participants != 2 || res.Scores != 4 || res.Attachments != 1 {
		t.Errorf("DeleteAll() = %+v, want 2 participants, 4 scores, 1 attachment", res)
	}

	_, total, err := svc.Query(ctx, participant.QueryFilter{})
	if err != nil {
		t.Fatalf("Query(): %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
}

func TestService_Query(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	for _, p := range []struct{ phone, name string }{
		{"0811111111", "Ada"}, {"0822222222", "Ben"}, {"0833333333", "Abel"},
	} {
		if _, err := svc.SaveSheet(ctx, participant.ScoreSheet{Phone: p.phone, Name: p.name}, true); err != nil {
			t.Fatalf("SaveSheet(%s): %v", p.phone, err)
		}
	}

	results, total, err := svc.Query(ctx, participant.QueryFilter{Search: "a"})
	if err != nil {
		t.Fatalf("Query(): %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Fatalf("Query(a) = %d results, total %d; want 2", len(results), total)
	}

	results, total, err = svc.Query(ctx, participant.QueryFilter{Search: "0822"})
	if err != nil {
		t.Fatalf("Query(): %v", err)
	}
	if total != 1 || results[0].Name != "Ben" {
		t.Fatalf("Query(0822) = %+v, total %d", results, total)
	}

	// paging caps apply
	results, total, err = svc.Query(ctx, participant.QueryFilter{Page: 2, Size: 2})
	if err != nil {
		t.Fatalf("Query(): %v", err)
	}
	if total != 3 || len(results) != 1 {
		t.Fatalf("Query(page 2) = %d results, total %d; want 1 of 3", len(results), total)
	}
}
