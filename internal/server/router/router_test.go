package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mamadbah2/greenconsole/internal/domain/models"
	"github.com/mamadbah2/greenconsole/internal/offline"
	"github.com/mamadbah2/greenconsole/internal/repository/sheets"
	"github.com/mamadbah2/greenconsole/internal/server/handlers"
	"github.com/mamadbah2/greenconsole/internal/service/console"
	"github.com/mamadbah2/greenconsole/internal/service/reporting"
	"github.com/mamadbah2/greenconsole/pkg/clients/greenapi"
)

type fakeConsole struct {
	outcome   models.Outcome
	err       error
	debug     bool
	creds     models.Credentials
	saved     *models.Credentials
	gotMethod greenapi.Method
	gotForm   models.Form
}

func (f *fakeConsole) Dispatch(_ context.Context, method greenapi.Method, form models.Form) (models.Outcome, error) {
	f.gotMethod, f.gotForm = method, form
	return f.outcome, f.err
}

func (f *fakeConsole) LoadCredentials(context.Context) models.Credentials { return f.creds }

func (f *fakeConsole) SaveCredentials(_ context.Context, creds models.Credentials) {
	f.saved = &creds
}

func (f *fakeConsole) DebugEnabled() bool { return f.debug }

type fakeJournal struct {
	entries  []sheets.JournalEntry
	gotLimit int
	gotSpan  time.Duration
}

func (f *fakeJournal) Recent(_ context.Context, limit int) ([]sheets.JournalEntry, error) {
	f.gotLimit = limit
	return f.entries, nil
}

func (f *fakeJournal) CallReport(_ context.Context, start, end time.Time) (reporting.Report, error) {
	f.gotSpan = end.Sub(start)
	return reporting.Report{Total: len(f.entries)}, nil
}

type fakePoster struct {
	reply any
	err   error
	got   models.ControlMessage
}

func (f *fakePoster) PostMessage(_ context.Context, msg models.ControlMessage) (any, error) {
	f.got = msg
	return f.reply, f.err
}

type testRig struct {
	console *fakeConsole
	journal *fakeJournal
	poster  *fakePoster
	pages   http.Handler
}

func (rig *testRig) serve(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var (
		journal  handlers.JournalReader
		reporter handlers.CallReporter
	)
	if rig.journal != nil {
		journal, reporter = rig.journal, rig.journal
	}
	engine := New(
		handlers.NewConsoleHandler(rig.console, nil),
		handlers.NewJournalHandler(journal, reporter, nil),
		handlers.NewWorkerHandler(rig.poster, nil),
		rig.pages,
		nil,
	)

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func newRig() *testRig {
	return &testRig{console: &fakeConsole{}, poster: &fakePoster{}}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	rec := newRig().serve(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != `{"status":"ok"}` {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestCallStatusMapping(t *testing.T) {
	success := models.Outcome{
		Envelope: &models.Envelope{Method: "getSettings", Status: models.StatusSuccess, Data: json.RawMessage(`{}`)},
		Notice:   models.Notice{Level: models.NoticeSuccess, Message: "getSettings completed successfully"},
	}
	failure := models.Outcome{
		Envelope: &models.Envelope{Method: "getSettings", Status: models.StatusError, Error: &models.EnvelopeError{Message: "HTTP 401: Unauthorized", Name: "HTTPError"}},
		Notice:   models.Notice{Level: models.NoticeError, Message: "getSettings failed: HTTP 401: Unauthorized"},
	}
	busy := models.Outcome{Notice: models.Notice{Level: models.NoticeInfo, Message: "Please wait for the current request to complete"}}
	invalid := &console.ValidationError{
		Message: "Please fill in valid credentials",
		Fields:  []models.FieldResult{{Field: models.FieldAPIToken, Reason: "API Token too short"}},
	}

	tests := []struct {
		name     string
		path     string
		outcome  models.Outcome
		err      error
		wantCode int
	}{
		{name: "success", path: "/api/calls/getSettings", outcome: success, wantCode: http.StatusOK},
		{name: "error envelope", path: "/api/calls/getSettings", outcome: failure, wantCode: http.StatusBadGateway},
		{name: "busy", path: "/api/calls/getSettings", outcome: busy, err: console.ErrBusy, wantCode: http.StatusConflict},
		{name: "invalid", path: "/api/calls/getSettings", err: invalid, wantCode: http.StatusBadRequest},
		{name: "unknown method", path: "/api/calls/deleteAccount", wantCode: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rig := newRig()
			rig.console.outcome, rig.console.err = tc.outcome, tc.err

			rec := rig.serve(t, http.MethodPost, tc.path, models.Form{InstanceID: "1234567890"})
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.wantCode, rec.Body.String())
			}
		})
	}
}

func TestCallPassesMethodAndForm(t *testing.T) {
	rig := newRig()
	rig.console.outcome = models.Outcome{Envelope: &models.Envelope{Status: models.StatusSuccess}}

	rig.serve(t, http.MethodPost, "/api/calls/sendMessage", models.Form{PhoneNumber: "79001234567", MessageText: "Hi"})

	if rig.console.gotMethod != greenapi.MethodSendMessage {
		t.Fatalf("method = %q", rig.console.gotMethod)
	}
	if rig.console.gotForm.PhoneNumber != "79001234567" || rig.console.gotForm.MessageText != "Hi" {
		t.Fatalf("form = %+v", rig.console.gotForm)
	}
}

func TestCallValidationBody(t *testing.T) {
	rig := newRig()
	rig.console.outcome = models.Outcome{Notice: models.Notice{Level: models.NoticeError, Message: "Please fill in valid credentials"}}
	rig.console.err = &console.ValidationError{
		Message: "Please fill in valid credentials",
		Fields:  []models.FieldResult{{Field: models.FieldInstanceID, Reason: "Invalid instance ID format"}},
	}

	rec := rig.serve(t, http.MethodPost, "/api/calls/getStateInstance", models.Form{})

	var body struct {
		Notice models.Notice        `json:"notice"`
		Fields []models.FieldResult `json:"fields"`
	}
	decode(t, rec, &body)
	if body.Notice.Message != "Please fill in valid credentials" || len(body.Fields) != 1 || body.Fields[0].Field != models.FieldInstanceID {
		t.Fatalf("body = %+v", body)
	}
}

func TestCredentialsRoutes(t *testing.T) {
	rig := newRig()
	rig.console.creds = models.Credentials{InstanceID: "1234567890", APIToken: "abcdefghijklmnopqrstuvwxyz"}

	rec := rig.serve(t, http.MethodGet, "/api/credentials", nil)
	var got models.Credentials
	decode(t, rec, &got)
	if got != rig.console.creds {
		t.Fatalf("GET credentials = %+v", got)
	}

	rec = rig.serve(t, http.MethodPut, "/api/credentials", models.Credentials{InstanceID: " 1234567890 ", APIToken: "tok"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d", rec.Code)
	}
	if rig.console.saved == nil || rig.console.saved.InstanceID != " 1234567890 " {
		t.Fatalf("saved = %+v", rig.console.saved)
	}
	decode(t, rec, &got)
	if got.InstanceID != "1234567890" {
		t.Fatalf("PUT response = %+v", got)
	}

	rec = rig.serve(t, http.MethodPut, "/api/credentials", models.Credentials{InstanceID: "12"})
	if rec.Code != http.StatusOK || rig.console.saved.InstanceID != "12" || rig.console.saved.APIToken != "" {
		t.Fatalf("partial PUT = %d, saved %+v", rec.Code, rig.console.saved)
	}

	if rec := rig.serve(t, http.MethodPut, "/api/credentials", "{"); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed PUT status = %d", rec.Code)
	}
}

func TestValidateAndFormatRoutes(t *testing.T) {
	rig := newRig()

	rec := rig.serve(t, http.MethodPost, "/api/validate", models.ValidateFieldRequest{Field: models.FieldPhoneNumber, Value: "123"})
	var result models.FieldResult
	decode(t, rec, &result)
	if result.Valid || result.Reason != "Phone number should be 11-15 digits" {
		t.Fatalf("validate = %+v", result)
	}

	if rec := rig.serve(t, http.MethodPost, "/api/validate", map[string]string{"value": "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing field status = %d", rec.Code)
	}

	rec = rig.serve(t, http.MethodPost, "/api/phone/format", models.FormatPhoneRequest{Raw: "+7 (900) 123-45-67"})
	var formatted map[string]string
	decode(t, rec, &formatted)
	if formatted["digits"] != "79001234567" {
		t.Fatalf("format = %v", formatted)
	}
}

func TestFixtureOnlyInDebug(t *testing.T) {
	rig := newRig()
	if rec := rig.serve(t, http.MethodGet, "/api/debug/fixture", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("fixture without debug = %d", rec.Code)
	}

	rig.console.debug = true
	rec := rig.serve(t, http.MethodGet, "/api/debug/fixture", nil)
	var form models.Form
	decode(t, rec, &form)
	if form != console.Fixture() {
		t.Fatalf("fixture = %+v", form)
	}
}

func TestJournalRoute(t *testing.T) {
	rig := newRig()
	if rec := rig.serve(t, http.MethodGet, "/api/journal", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("disabled journal status = %d", rec.Code)
	}

	rig.journal = &fakeJournal{entries: []sheets.JournalEntry{{Method: "getSettings", Status: "success"}}}
	rec := rig.serve(t, http.MethodGet, "/api/journal?limit=500", nil)
	if rec.Code != http.StatusOK || rig.journal.gotLimit != 100 {
		t.Fatalf("journal = %d, limit %d", rec.Code, rig.journal.gotLimit)
	}
	if rec := rig.serve(t, http.MethodGet, "/api/journal?limit=zero", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", rec.Code)
	}

	rec = rig.serve(t, http.MethodGet, "/api/journal/report?days=3", nil)
	var report reporting.Report
	decode(t, rec, &report)
	if report.Total != 1 || rig.journal.gotSpan != 3*24*time.Hour {
		t.Fatalf("report = %+v, span %s", report, rig.journal.gotSpan)
	}
}

func TestWorkerMessages(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		reply    any
		err      error
		wantCode int
	}{
		{name: "version", body: models.ControlMessage{Type: models.ControlGetVersion}, reply: models.VersionReply{Version: "green-api-v1.0.0"}, wantCode: http.StatusOK},
		{name: "unknown", body: models.ControlMessage{Type: "SYNC"}, err: offline.ErrUnknownMessage, wantCode: http.StatusBadRequest},
		{name: "foreign url", body: models.ControlMessage{Type: models.ControlCacheURLs, Payload: []string{"http://10.0.0.1/"}}, err: fmt.Errorf("%w: http://10.0.0.1/", offline.ErrForeignURL), wantCode: http.StatusBadRequest},
		{name: "no controller", body: models.ControlMessage{Type: models.ControlGetVersion}, err: offline.ErrNoController, wantCode: http.StatusServiceUnavailable},
		{name: "failure", body: models.ControlMessage{Type: models.ControlCacheURLs}, err: errors.New("boom"), wantCode: http.StatusInternalServerError},
		{name: "missing type", body: map[string]string{}, wantCode: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rig := newRig()
			rig.poster.reply, rig.poster.err = tc.reply, tc.err

			rec := rig.serve(t, http.MethodPost, "/sw/messages", tc.body)
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
		})
	}
}

func TestNoRouteFallsThroughToPages(t *testing.T) {
	rig := newRig()
	rig.pages = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("page " + r.URL.Path))
	})

	rec := rig.serve(t, http.MethodGet, "/styles/main.css", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "page /styles/main.css" {
		t.Fatalf("fallback = %d %q", rec.Code, rec.Body.String())
	}
}

func TestLoggerMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	engine := New(
		handlers.NewConsoleHandler(&fakeConsole{}, nil),
		handlers.NewJournalHandler(nil, nil, nil),
		handlers.NewWorkerHandler(&fakePoster{}, nil),
		nil,
		zap.New(core),
	)

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d request entries, want 1", len(entries))
	}
	if entries[0].ContextMap()["path"] != "/healthz" {
		t.Fatalf("fields = %v", entries[0].ContextMap())
	}
}
