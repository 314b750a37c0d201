package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/rkabuya/evaldesk/apps/api/echo"
	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/evaluation"
	"github.com/rkabuya/evaldesk/core/hierarchy"
	"github.com/rkabuya/evaldesk/core/participant"
	"github.com/rkabuya/evaldesk/core/setting"
	"github.com/rkabuya/evaldesk/core/user"
	"github.com/rkabuya/evaldesk/storage/database/dummy"
	"github.com/rkabuya/evaldesk/storage/files"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// nopLogger satisfies core.Logger; API tests never want log noise.
type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type testApp struct {
	app        Server
	usrSvc     *user.Service
	hierSvc    *hierarchy.Service
	partSvc    *participant.Service
	settingSvc *setting.Service
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := &core.Config{
		TestMode:  true,
		AppName:   "Evaldesk",
		SecretKey: "test-secret-key",
	}

	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	hierRepo := dummydb.NewHierarchyRepository(db)
	partRepo := dummydb.NewParticipantRepository(db)
	store, err := files.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("files.NewStore(): %v", err)
	}

	// set up services
	ta := &testApp{
		usrSvc:     user.NewService(dummydb.NewUserRepository(db), validate),
		settingSvc: setting.NewService(dummydb.NewSettingRepository(db)),
	}
	ta.hierSvc = hierarchy.NewService(db, hierRepo)
	ta.partSvc = participant.NewService(db, partRepo, ta.hierSvc, store)

	// set up server
	ta.app = NewServer(
		&Options{
			Conf:           conf,
			Logger:         nopLogger{},
			DisableReqLogs: true,
			UserSvc:        ta.usrSvc,
			HierarchySvc:   ta.hierSvc,
			ParticipantSvc: ta.partSvc,
			SettingSvc:     ta.settingSvc,
			Engine:         evaluation.NewEngine(hierRepo, partRepo),
			Validate:       validate,
			Translator:     translator,
		},
	)
	return ta
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart request carrying one file field.
func newUploadRequest(t *testing.T, method, path, token, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile(): %v", err)
	}
	if _, err = part.Write(content); err != nil {
		t.Fatalf("writing upload: %v", err)
	}
	if err = writer.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getAdminToken(t *testing.T, ta *testApp) string {
	t.Helper()
	usr, err := ta.usrSvc.Create(context.Background(), user.NewUser{Username: "root", Password: "t3st-pwd!"})
	if err != nil {
		t.Fatalf("creating admin: %v", err)
	}
	return getToken(t, usr)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarchallObj(t *testing.T, data []byte, obj interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, obj); err != nil {
		t.Fatalf("unmarchallObj(): %v; data: %s", err, data)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
