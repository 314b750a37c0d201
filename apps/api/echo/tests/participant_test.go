package tests

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rkabuya/evaldesk/core/hierarchy"
	"github.com/rkabuya/evaldesk/core/participant"
)

const measureKey = "Governance / Transparency / Reports published"

func seedParticipant(t *testing.T, ta *testApp, phone, name string, scores map[string]float64) participant.Participant {
	t.Helper()
	p, err := ta.partSvc.SaveSheet(context.Background(), participant.ScoreSheet{
		Phone: phone, Name: name, Scores: scores,
	}, true)
	if err != nil {
		t.Fatalf("SaveSheet(%s): %v", phone, err)
	}
	return p
}

func TestParticipantCRUD(t *testing.T) {
	ta := setup(t)
	token := getAdminToken(t, ta)
	seedHierarchy(t, ta)
	seedParticipant(t, ta, "0822222222", "Ben", map[string]float64{measureKey: 2})

	tests := []httpTest{
		{
			name: "create", method: http.MethodPost, path: "/v1/admin/participants", token: token,
			body:     []byte(`{"phone":"0811111111","name":"Ada","scores":{"` + measureKey + `":4}}`),
			wantCode: http.StatusCreated,
		},
		{
			name: "invalid phone", method: http.MethodPost, path: "/v1/admin/participants", token: token,
			body:     []byte(`{"phone":"12345","name":"Ada","scores":{"` + measureKey + `":4}}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"phone":"invalid phone number format (e.g. 0912345678)"}`),
		},
		{
			name: "duplicate phone", method: http.MethodPost, path: "/v1/admin/participants", token: token,
			body:     []byte(`{"phone":"0811111111","name":"Ada Again","scores":{"` + measureKey + `":1}}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"phone":"a participant with this phone number already exists"}`),
		},
		{
			name: "unknown score key", method: http.MethodPost, path: "/v1/admin/participants", token: token,
			body:     []byte(`{"phone":"0833333333","name":"Zed","scores":{"Nope / Nope / Nope":3}}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"Nope / Nope / Nope":"unknown scoreable item"}`),
		},
		{
			name: "score out of range", method: http.MethodPost, path: "/v1/admin/participants", token: token,
			body:     []byte(`{"phone":"0833333333","name":"Zed","scores":{"` + measureKey + `":7}}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "update unknown participant", method: http.MethodPut, path: "/v1/admin/participants/0899999999", token: token,
			body:     []byte(`{"name":"Ghost","scores":{}}`),
			wantCode: http.StatusNotFound, wantData: []byte(`{"error":"not found"}`),
		},
		{
			name: "delete", method: http.MethodDelete, path: "/v1/admin/participants/0822222222", token: token,
			wantCode: http.StatusNoContent,
		},
		{
			name: "delete again", method: http.MethodDelete, path: "/v1/admin/participants/0822222222", token: token,
			wantCode: http.StatusNotFound, wantData: []byte(`{"error":"not found"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			ta.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestParticipantQueryAndSheet(t *testing.T) {
	ta := setup(t)
	token := getAdminToken(t, ta)
	seedHierarchy(t, ta)
	seedParticipant(t, ta, "0811111111", "Ada", map[string]float64{measureKey: 4})
	seedParticipant(t, ta, "0822222222", "Ben", nil)

	t.Run("query search", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/participants?search=ben", token)
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var page struct {
			Results []participant.Participant `json:"results"`
			Total   int                       `json:"total"`
		}
		unmarchallObj(t, rec.Body.Bytes(), &page)
		assert.Equal(t, 1, page.Total)
		if assert.Len(t, page.Results, 1) {
			assert.Equal(t, "Ben", page.Results[0].Name)
		}
	})

	t.Run("query pages", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/participants?page=2&size=1", token)
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var page struct {
			Results []participant.Participant `json:"results"`
			Total   int                       `json:"total"`
		}
		unmarchallObj(t, rec.Body.Bytes(), &page)
		assert.Equal(t, 2, page.Total)
		assert.Len(t, page.Results, 1)
	})

	t.Run("sheet", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/participants/0811111111", token)
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var sheet participant.Sheet
		unmarchallObj(t, rec.Body.Bytes(), &sheet)
		if assert.NotNil(t, sheet.Participant) {
			assert.Equal(t, "Ada", sheet.Participant.Name)
		}
		assert.Len(t, sheet.Items, 1)
		assert.Equal(t, 4.0, sheet.Values[measureKey])
	})

	t.Run("sheet for unknown phone", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/participants/0899999999", token)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: []byte(`{"error":"not found"}`)}, rec)
	})

	t.Run("update renames and rescores", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/admin/participants/0822222222", token,
			[]byte(`{"name":"Benjamin","scores":{"`+measureKey+`":5}}`))
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var p participant.Participant
		unmarchallObj(t, rec.Body.Bytes(), &p)
		assert.Equal(t, "Benjamin", p.Name)

		sheet, err := ta.partSvc.Sheet(context.Background(), "0822222222")
		assert.NoError(t, err)
		assert.Equal(t, 5.0, sheet.Values[measureKey])
	})

	t.Run("delete all", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/admin/participants", token)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: []byte(`{"participants":2,"scores":2,"attachments":0}`),
		}, rec)
	})
}

func TestParticipantSpreadsheets(t *testing.T) {
	ta := setup(t)
	token := getAdminToken(t, ta)
	seedHierarchy(t, ta)

	t.Run("score template", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/participants/template", token)
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="scores_template.xlsx"`, rec.Header().Get("Content-Disposition"))
	})

	t.Run("import creates participants", func(t *testing.T) {
		csv := "phone,name," + measureKey + "\n" +
			"0811111111,Ada,4\n" +
			"0822222222,Ben,2\n"
		req, rec := newUploadRequest(t, http.MethodPost, "/v1/admin/participants/import", token, "scores.csv", []byte(csv))
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"processed":2}`)}, rec)

		sheet, err := ta.partSvc.Sheet(context.Background(), "0811111111")
		assert.NoError(t, err)
		assert.Equal(t, 4.0, sheet.Values[measureKey])
	})

	t.Run("import rejects bad rows wholesale", func(t *testing.T) {
		csv := "phone,name," + measureKey + "\n" +
			"0833333333,Zed,3\n" +
			"12345,Bad Phone,1\n"
		req, rec := newUploadRequest(t, http.MethodPost, "/v1/admin/participants/import", token, "scores.csv", []byte(csv))
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var res participant.ImportResult
		unmarchallObj(t, rec.Body.Bytes(), &res)
		assert.Equal(t, 0, res.Processed)
		if assert.Len(t, res.RowErrors, 1) {
			assert.Equal(t, 3, res.RowErrors[0].Line)
		}
		// the valid first row must not survive the rollback
		_, err := ta.partSvc.Get(context.Background(), "0833333333")
		assert.Equal(t, participant.ErrNotFound, err)
	})

	t.Run("export", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/participants/export", token)
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `attachment; filename="scores.csv"`, rec.Header().Get("Content-Disposition"))

		lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
		if assert.Len(t, lines, 3) {
			assert.Equal(t, "phone,name,"+measureKey, lines[0])
			assert.Contains(t, rec.Body.String(), "0811111111,Ada,4")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/participants/import", token)
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// a name containing the separator can collide with another branch, which
// makes spreadsheet columns ambiguous
func TestParticipantSpreadsheetAmbiguousColumns(t *testing.T) {
	ta := setup(t)
	token := getAdminToken(t, ta)
	ctx := context.Background()
	weight := func(v float64) *float64 { return &v }

	ax, err := ta.hierSvc.CreateAxis(ctx, hierarchy.NewAxis{Name: "A"})
	if err != nil {
		t.Fatalf("CreateAxis(): %v", err)
	}
	ind1, err := ta.hierSvc.CreateIndicator(ctx, hierarchy.NewIndicator{AxisID: ax.ID, Name: "I", Weight: weight(0.5)})
	if err != nil {
		t.Fatalf("CreateIndicator(): %v", err)
	}
	ind2, err := ta.hierSvc.CreateIndicator(ctx, hierarchy.NewIndicator{AxisID: ax.ID, Name: "I / J", Weight: weight(0.5)})
	if err != nil {
		t.Fatalf("CreateIndicator(): %v", err)
	}
	// both resolve to the display name "A / I / J / K"
	if _, err = ta.hierSvc.CreateMeasure(ctx, hierarchy.NewMeasure{IndicatorID: ind1.ID, Name: "J / K", Weight: weight(1)}); err != nil {
		t.Fatalf("CreateMeasure(): %v", err)
	}
	if _, err = ta.hierSvc.CreateMeasure(ctx, hierarchy.NewMeasure{IndicatorID: ind2.ID, Name: "K", Weight: weight(1)}); err != nil {
		t.Fatalf("CreateMeasure(): %v", err)
	}

	for _, path := range []string{"/v1/admin/participants/template", "/v1/admin/participants/export"} {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code, path)
	}
	req, rec := newUploadRequest(t, http.MethodPost, "/v1/admin/participants/import", token, "scores.csv",
		[]byte("phone,name\n0811111111,Ada\n"))
	ta.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestParticipantAttachments(t *testing.T) {
	ta := setup(t)
	token := getAdminToken(t, ta)
	seedHierarchy(t, ta)
	seedParticipant(t, ta, "0811111111", "Ada", map[string]float64{measureKey: 4})

	t.Run("upload", func(t *testing.T) {
		req, rec := newUploadRequest(t, http.MethodPost, "/v1/admin/participants/0811111111/attachment", token, "id card.pdf", []byte("%PDF-1.4 stub"))
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var p participant.Participant
		unmarchallObj(t, rec.Body.Bytes(), &p)
		assert.Equal(t, "0811111111_id_card.pdf", p.AttachmentFilename.String)
	})

	t.Run("rejected extension", func(t *testing.T) {
		req, rec := newUploadRequest(t, http.MethodPost, "/v1/admin/participants/0811111111/attachment", token, "virus.exe", []byte("MZ"))
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("serve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/participants/0811111111/attachment", token)
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "%PDF-1.4 stub", rec.Body.String())
		assert.Equal(t, `attachment; filename="0811111111_id_card.pdf"`, rec.Header().Get("Content-Disposition"))
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/admin/participants/0811111111/attachment", token)
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var p participant.Participant
		unmarchallObj(t, rec.Body.Bytes(), &p)
		assert.False(t, p.AttachmentFilename.Valid)
	})

	t.Run("serve after delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/participants/0811111111/attachment", token)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: []byte(`{"error":"not found"}`)}, rec)
	})

	t.Run("attachment for unknown phone", func(t *testing.T) {
		req, rec := newUploadRequest(t, http.MethodPost, "/v1/admin/participants/0899999999/attachment", token, "x.pdf", []byte("x"))
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: []byte(`{"error":"not found"}`)}, rec)
	})
}
