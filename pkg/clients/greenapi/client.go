package greenapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/greenconsole/internal/config"
	"github.com/mamadbah2/greenconsole/internal/domain/models"
)

// fetchErrorHeader is set by the offline cache when it answers for an unreachable network.
const fetchErrorHeader = "X-Fetch-Error"

// Client exposes the GREEN-API gateway calls used by the console.
type Client interface {
	URL(creds models.Credentials, req Request) string
	Call(ctx context.Context, creds models.Credentials, req Request) (json.RawMessage, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
	baseURL    string
}

// NewClient builds a gateway client using the provided configuration values. A non-nil
// transport replaces the default one, which is how the offline cache intercepts calls.
func NewClient(cfg config.GreenAPIConfig, transport http.RoundTripper) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)
	if transport != nil {
		restyClient.SetTransport(transport)
	}

	return &APIClient{
		httpClient: restyClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

// URL renders {base}/waInstance{id}/{method}/{token}.
func (c *APIClient) URL(creds models.Credentials, req Request) string {
	return fmt.Sprintf("%s/waInstance%s/%s/%s", c.baseURL, creds.InstanceID, req.Method(), creds.APIToken)
}

// Call issues exactly one request and returns the raw JSON payload on success.
// Failures are *NetworkError, *HTTPError or *ParseError.
func (c *APIClient) Call(ctx context.Context, creds models.Credentials, req Request) (json.RawMessage, error) {
	r := c.httpClient.R().SetContext(ctx)
	if body := req.Body(); body != nil {
		r.SetBody(body)
	}

	resp, err := r.Execute(req.Verb(), c.URL(creds, req))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if cause := resp.Header().Get(fetchErrorHeader); cause != "" && resp.StatusCode() == http.StatusServiceUnavailable {
		return nil, &NetworkError{Err: errors.New(cause)}
	}

	if !resp.IsSuccess() {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode(),
			StatusText: statusText(resp.StatusCode(), resp.Status()),
			Body:       resp.Body(),
		}
	}

	var payload json.RawMessage
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, &ParseError{Err: err}
	}

	return payload, nil
}

// statusText strips the numeric prefix net/http puts on Response.Status.
func statusText(code int, status string) string {
	text := strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(code)))
	if text == "" {
		text = http.StatusText(code)
	}
	return text
}
