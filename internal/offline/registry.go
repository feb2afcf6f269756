package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mamadbah2/greenconsole/internal/domain/models"
)

// ErrNoController is returned for messages that need an active worker when none has claimed control.
var ErrNoController = errors.New("no active worker")

// Registry tracks which worker version controls fetches. Uncontrolled fetches go
// straight to the network.
type Registry struct {
	network Fetcher
	origin  string
	logger  *zap.Logger

	mu         sync.RWMutex
	controller *Worker
	waiting    *Worker
}

// NewRegistry creates an empty registry.
func NewRegistry(origin string, network Fetcher, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		network: network,
		origin:  strings.TrimSuffix(origin, "/"),
		logger:  logger,
	}
}

// Register installs w. On success w activates and claims control right away; on
// failure it is parked as the waiting worker and the error is returned.
func (r *Registry) Register(ctx context.Context, w *Worker) error {
	w.setClaim(r.claim)

	r.mu.Lock()
	r.waiting = w
	r.mu.Unlock()

	if err := w.Install(ctx); err != nil {
		return err
	}
	return nil
}

func (r *Registry) claim(w *Worker) {
	r.mu.Lock()
	prev := r.controller
	r.controller = w
	if r.waiting == w {
		r.waiting = nil
	}
	r.mu.Unlock()

	if prev != nil && prev != w {
		prev.setState(StateRedundant)
	}
	r.logger.Info("worker claimed control", zap.String("version", w.CacheName()))
}

// Controller returns the active worker, or nil.
func (r *Registry) Controller() *Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.controller
}

// Waiting returns the installed-but-not-active worker, or nil.
func (r *Registry) Waiting() *Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.waiting
}

// Fetch routes req through the controlling worker.
func (r *Registry) Fetch(ctx context.Context, req *Request) *Response {
	if w := r.Controller(); w != nil {
		return w.Fetch(ctx, req)
	}

	resp, err := r.network.Fetch(ctx, req)
	if err != nil {
		r.logger.Warn("uncontrolled fetch failed", zap.String("url", redact(req.URL)), zap.Error(err))
		return unavailable("Network Error")
	}
	return resp
}

// PostMessage delivers a control message. SKIP_WAITING goes to the waiting worker
// when there is one; everything else goes to the controller.
func (r *Registry) PostMessage(ctx context.Context, msg models.ControlMessage) (any, error) {
	target := r.Controller()
	if msg.Type == models.ControlSkipWaiting {
		if w := r.Waiting(); w != nil {
			target = w
		}
	}
	if target == nil {
		return nil, ErrNoController
	}
	return target.HandleMessage(ctx, msg)
}

// Cleanup runs CLEANUP_CACHE on the controller; it is a no-op without one.
func (r *Registry) Cleanup(ctx context.Context) (int, error) {
	w := r.Controller()
	if w == nil {
		return 0, nil
	}
	return w.Cleanup(ctx)
}

// RoundTrip lets the registry act as the transport of an HTTP client, so the
// client's calls are intercepted like page fetches.
func (r *Registry) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	resp := r.Fetch(req.Context(), &Request{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})

	header := resp.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		Status:        strconv.Itoa(resp.Status) + " " + resp.StatusText,
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       req,
	}, nil
}

// ServeHTTP answers page requests for the console origin through the controller.
func (r *Registry) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}

	resp := r.Fetch(req.Context(), &Request{
		Method: req.Method,
		URL:    r.origin + req.URL.RequestURI(),
		Header: req.Header.Clone(),
		Body:   body,
	})

	for name, values := range resp.Header {
		if strings.EqualFold(name, "Content-Length") {
			continue
		}
		for _, v := range values {
			rw.Header().Add(name, v)
		}
	}
	rw.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	rw.WriteHeader(resp.Status)
	if req.Method != http.MethodHead {
		_, _ = rw.Write(resp.Body)
	}
}
