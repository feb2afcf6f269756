package offline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Request is an intercepted fetch.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Key is the cache identity of the request.
func (r *Request) Key() string {
	return r.Method + " " + r.URL
}

// Fetcher performs a fetch that bypasses the cache.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// NetworkFetcher issues fetches over HTTP with resty.
type NetworkFetcher struct {
	client *resty.Client
}

// NewNetworkFetcher builds a fetcher. transport may be nil for the default one; it
// must never be a transport that routes back through the worker.
func NewNetworkFetcher(transport http.RoundTripper, timeout time.Duration) *NetworkFetcher {
	client := resty.New().SetTimeout(timeout)
	if transport != nil {
		client.SetTransport(transport)
	}
	return &NetworkFetcher{client: client}
}

func (f *NetworkFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	r := f.client.R().SetContext(ctx)
	for name, values := range req.Header {
		if strings.EqualFold(name, "Accept-Encoding") {
			continue
		}
		for _, v := range values {
			r.Header.Add(name, v)
		}
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	}

	header := resp.Header().Clone()
	header.Del("Content-Length")
	return &Response{
		Status:     resp.StatusCode(),
		StatusText: statusText(resp.StatusCode(), resp.Status()),
		Header:     header,
		Body:       resp.Body(),
	}, nil
}

// OriginFetcher serves fetches for the console's own origin from a file tree and
// hands every other URL to next.
type OriginFetcher struct {
	origin *url.URL
	files  fs.FS
	next   Fetcher
	now    func() time.Time
}

// NewOriginFetcher binds files to origin, e.g. "http://localhost:8080".
func NewOriginFetcher(origin string, files fs.FS, next Fetcher) (*OriginFetcher, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid origin %q", origin)
	}
	return &OriginFetcher{origin: u, files: files, next: next, now: time.Now}, nil
}

func (f *OriginFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", req.URL, err)
	}
	if u.Scheme != f.origin.Scheme || u.Host != f.origin.Host {
		return f.next.Fetch(ctx, req)
	}

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return textResponse(http.StatusMethodNotAllowed, "Method Not Allowed"), nil
	}

	name := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	if name == "" {
		name = "index.html"
	}

	info, err := fs.Stat(f.files, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return textResponse(http.StatusNotFound, "Not Found"), nil
		}
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return textResponse(http.StatusNotFound, "Not Found"), nil
	}

	data, err := fs.ReadFile(f.files, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	header := http.Header{}
	if ctype := mime.TypeByExtension(path.Ext(name)); ctype != "" {
		header.Set("Content-Type", ctype)
	} else {
		header.Set("Content-Type", http.DetectContentType(data))
	}
	header.Set("Date", f.now().UTC().Format(http.TimeFormat))

	return &Response{Status: http.StatusOK, StatusText: "OK", Header: header, Body: data}, nil
}

func textResponse(status int, body string) *Response {
	header := http.Header{}
	header.Set("Content-Type", "text/plain; charset=utf-8")
	return &Response{Status: status, StatusText: http.StatusText(status), Header: header, Body: []byte(body)}
}

func statusText(code int, status string) string {
	text := strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(code)))
	if text == "" {
		text = http.StatusText(code)
	}
	return text
}
