package greenapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mamadbah2/greenconsole/internal/config"
	"github.com/mamadbah2/greenconsole/internal/domain/models"
)

var testCreds = models.Credentials{
	InstanceID: "1234567890",
	APIToken:   "d75b3a66374942c5b3c019c698abc2067e151558acbd412345",
}

func newTestClient(baseURL string) *APIClient {
	return NewClient(config.GreenAPIConfig{BaseURL: baseURL, Timeout: 5 * time.Second}, nil)
}

func TestURLFollowsPathTemplate(t *testing.T) {
	c := newTestClient("https://api.green-api.com/")

	got := c.URL(testCreds, GetSettings{})
	want := "https://api.green-api.com/waInstance1234567890/getSettings/d75b3a66374942c5b3c019c698abc2067e151558acbd412345"
	if got != want {
		t.Fatalf("URL() = %q, want %q", got, want)
	}
}

func TestCallGetSendsNoBody(t *testing.T) {
	var gotMethod, gotPath, gotAccept string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"stateInstance":"authorized"}`))
	}))
	defer srv.Close()

	payload, err := newTestClient(srv.URL).Call(context.Background(), testCreds, GetStateInstance{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method = %s, want GET", gotMethod)
	}
	if gotPath != "/waInstance1234567890/getStateInstance/"+testCreds.APIToken {
		t.Errorf("path = %s", gotPath)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want application/json", gotAccept)
	}
	if len(gotBody) != 0 {
		t.Errorf("body = %q, want empty", gotBody)
	}
	if string(payload) != `{"stateInstance":"authorized"}` {
		t.Errorf("payload = %s", payload)
	}
}

func TestCallSendMessageBody(t *testing.T) {
	var gotBody map[string]string
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"idMessage":"BAE5F4886B4C9F3A"}`))
	}))
	defer srv.Close()

	req := SendMessage{ChatID: ChatID("79001234567"), Message: "Hello"}
	if _, err := newTestClient(srv.URL).Call(context.Background(), testCreds, req); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotBody["chatId"] != "79001234567@c.us" || gotBody["message"] != "Hello" {
		t.Errorf("body = %v", gotBody)
	}
	if len(gotBody) != 2 {
		t.Errorf("body has %d keys, want 2", len(gotBody))
	}
}

func TestCallHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Call(context.Background(), testCreds, GetSettings{})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Call() error = %v, want *HTTPError", err)
	}
	if err.Error() != "HTTP 401: Unauthorized" {
		t.Fatalf("error = %q, want %q", err.Error(), "HTTP 401: Unauthorized")
	}
}

func TestCallParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Call(context.Background(), testCreds, GetSettings{})
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Call() error = %v, want *ParseError", err)
	}
}

func TestCallNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	_, err := newTestClient(baseURL).Call(context.Background(), testCreds, GetSettings{})
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Call() error = %v, want *NetworkError", err)
	}
}

func TestCallInterceptedNetworkFailure(t *testing.T) {
	tests := []struct {
		name    string
		cause   string
		wantNet bool
		wantMsg string
	}{
		{name: "offline cache answer", cause: "connect: connection refused", wantNet: true, wantMsg: "connect: connection refused"},
		{name: "gateway 503", wantMsg: "HTTP 503: Service Unavailable"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.cause != "" {
					w.Header().Set("X-Fetch-Error", tc.cause)
				}
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Call(context.Background(), testCreds, SendMessage{ChatID: "79001234567@c.us", Message: "hi"})
			var netErr *NetworkError
			if errors.As(err, &netErr) != tc.wantNet {
				t.Fatalf("Call() error = %T %v, NetworkError want %v", err, err, tc.wantNet)
			}
			if err.Error() != tc.wantMsg {
				t.Fatalf("error = %q, want %q", err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	for _, m := range Methods {
		got, err := ParseMethod(string(m))
		if err != nil || got != m {
			t.Errorf("ParseMethod(%q) = %q, %v", m, got, err)
		}
	}
	if _, err := ParseMethod("deleteMessage"); err == nil {
		t.Error("ParseMethod(deleteMessage) succeeded, want error")
	}
}

func TestRequestVerbs(t *testing.T) {
	cases := []struct {
		req  Request
		verb string
		body bool
	}{
		{GetSettings{}, http.MethodGet, false},
		{GetStateInstance{}, http.MethodGet, false},
		{SendMessage{}, http.MethodPost, true},
		{SendFileByURL{}, http.MethodPost, true},
	}
	for _, tc := range cases {
		if tc.req.Verb() != tc.verb {
			t.Errorf("%s verb = %s, want %s", tc.req.Method(), tc.req.Verb(), tc.verb)
		}
		if (tc.req.Body() != nil) != tc.body {
			t.Errorf("%s has body = %v, want %v", tc.req.Method(), tc.req.Body() != nil, tc.body)
		}
	}
}
