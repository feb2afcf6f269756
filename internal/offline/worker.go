package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/greenconsole/internal/domain/models"
)

// State is the worker lifecycle position.
type State int

const (
	StateInstalling State = iota
	StateWaiting
	StateActive
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	case StateRedundant:
		return "redundant"
	}
	return "unknown"
}

// Strategy is how a request class is answered.
type Strategy string

const (
	StrategyNetworkOnly          Strategy = "network-only"
	StrategyCacheFirst           Strategy = "cache-first"
	StrategyNetworkFirst         Strategy = "network-first"
	StrategyStaleWhileRevalidate Strategy = "stale-while-revalidate"
)

var (
	// ErrUnknownMessage is returned for control messages the worker does not understand.
	ErrUnknownMessage = errors.New("unknown control message")
	// ErrForeignURL rejects CACHE_URLS entries outside the console origin and the API hosts.
	ErrForeignURL = errors.New("url not cacheable")
)

// DefaultManifest is the static asset list cached on install.
var DefaultManifest = []string{"/", "/index.html", "/styles/main.css", "/js/app.js", "/manifest.json"}

// FetchErrorHeader names the transport failure behind a synthetic 503.
const FetchErrorHeader = "X-Fetch-Error"

var staticExtensions = []string{".css", ".js", ".html", ".json"}

// Options describe one worker version.
type Options struct {
	// Prefix and Version form the namespace names, e.g. green-api-static-v1.0.0.
	Prefix  string
	Version string
	// Origin resolves manifest paths and relative CACHE_URLS entries.
	Origin   string
	Manifest []string
	// APIPatterns select the network-first class.
	APIPatterns []*regexp.Regexp
	// Retention bounds entry age for CLEANUP_CACHE.
	Retention time.Duration
}

// Worker classifies intercepted fetches, applies a caching strategy to each and
// manages its versioned cache namespaces.
type Worker struct {
	opts    Options
	storage Storage
	network Fetcher
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.RWMutex
	state State
	claim func(*Worker)

	revalidations sync.WaitGroup
}

// NewWorker creates a worker in the installing state.
func NewWorker(opts Options, storage Storage, network Fetcher, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Manifest == nil {
		opts.Manifest = DefaultManifest
	}
	return &Worker{
		opts:    opts,
		storage: storage,
		network: network,
		logger:  logger.With(zap.String("version", opts.Version)),
		now:     time.Now,
		state:   StateInstalling,
	}
}

// CacheName is the version identifier reported by GET_VERSION.
func (w *Worker) CacheName() string {
	return fmt.Sprintf("%s-%s", w.opts.Prefix, w.opts.Version)
}

// StaticCacheName holds the install manifest and cache-first responses.
func (w *Worker) StaticCacheName() string {
	return fmt.Sprintf("%s-static-%s", w.opts.Prefix, w.opts.Version)
}

// DynamicCacheName holds network-first and stale-while-revalidate responses.
func (w *Worker) DynamicCacheName() string {
	return fmt.Sprintf("%s-dynamic-%s", w.opts.Prefix, w.opts.Version)
}

func (w *Worker) owns(name string) bool {
	return name == w.CacheName() || name == w.StaticCacheName() || name == w.DynamicCacheName()
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	prev := w.state
	w.state = s
	w.mu.Unlock()

	if prev != s {
		w.logger.Info("worker state changed", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

func (w *Worker) setClaim(fn func(*Worker)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.claim = fn
}

// Install caches the manifest into the static namespace and then skips waiting.
// When the manifest cannot be cached the worker stays waiting until SKIP_WAITING.
func (w *Worker) Install(ctx context.Context) error {
	w.setState(StateInstalling)

	if err := w.storage.Open(ctx, w.StaticCacheName()); err != nil {
		w.setState(StateWaiting)
		return fmt.Errorf("open %s: %w", w.StaticCacheName(), err)
	}

	urls := make([]string, 0, len(w.opts.Manifest))
	for _, p := range w.opts.Manifest {
		urls = append(urls, w.resolve(p))
	}

	if err := w.addAll(ctx, w.StaticCacheName(), urls); err != nil {
		w.setState(StateWaiting)
		w.logger.Error("installation failed", zap.Error(err))
		return fmt.Errorf("install %s: %w", w.CacheName(), err)
	}

	w.logger.Info("static assets cached", zap.Int("count", len(urls)))
	w.setState(StateWaiting)
	return w.SkipWaiting(ctx)
}

// SkipWaiting activates a waiting worker immediately.
func (w *Worker) SkipWaiting(ctx context.Context) error {
	if w.State() != StateWaiting {
		return nil
	}
	return w.Activate(ctx)
}

// Activate deletes every namespace this version does not own and claims control.
func (w *Worker) Activate(ctx context.Context) error {
	names, err := w.storage.Names(ctx)
	if err != nil {
		return fmt.Errorf("list caches: %w", err)
	}

	for _, name := range names {
		if w.owns(name) {
			continue
		}
		if _, err := w.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("delete cache %s: %w", name, err)
		}
		w.logger.Info("deleted old cache", zap.String("cache", name))
	}

	w.setState(StateActive)

	w.mu.RLock()
	claim := w.claim
	w.mu.RUnlock()
	if claim != nil {
		claim(w)
	}
	return nil
}

// Fetch answers an intercepted request. It never fails: when neither cache nor
// network can answer, a synthetic 503 response is returned.
func (w *Worker) Fetch(ctx context.Context, req *Request) *Response {
	start := w.now()
	strategy := w.Classify(req)

	var resp *Response
	switch strategy {
	case StrategyNetworkOnly:
		resp = w.networkOnly(ctx, req)
	case StrategyCacheFirst:
		resp = w.cacheFirst(ctx, req)
	case StrategyNetworkFirst:
		resp = w.networkFirst(ctx, req)
	default:
		resp = w.staleWhileRevalidate(ctx, req)
	}

	w.logger.Debug("fetch handled",
		zap.String("method", req.Method),
		zap.String("url", redact(req.URL)),
		zap.String("strategy", string(strategy)),
		zap.Int("status", resp.Status),
		zap.Duration("duration", w.now().Sub(start)))
	return resp
}

// Classify picks the strategy for req. Precedence: non-GET, static asset, API, other.
func (w *Worker) Classify(req *Request) Strategy {
	if req.Method != http.MethodGet {
		return StrategyNetworkOnly
	}
	if w.isStaticAsset(req.URL) {
		return StrategyCacheFirst
	}
	if w.isAPIRequest(req.URL) {
		return StrategyNetworkFirst
	}
	return StrategyStaleWhileRevalidate
}

func (w *Worker) isStaticAsset(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, asset := range w.opts.Manifest {
		if u.Path == asset {
			return true
		}
	}
	for _, ext := range staticExtensions {
		if strings.HasSuffix(u.Path, ext) {
			return true
		}
	}
	return false
}

func (w *Worker) isAPIRequest(rawURL string) bool {
	for _, pattern := range w.opts.APIPatterns {
		if pattern.MatchString(rawURL) {
			return true
		}
	}
	return false
}

func (w *Worker) networkOnly(ctx context.Context, req *Request) *Response {
	resp, err := w.network.Fetch(ctx, req)
	if err != nil {
		w.logger.Error("network only request failed", zap.String("url", redact(req.URL)), zap.Error(err))
		resp := unavailable("Network Error")
		resp.Header.Set(FetchErrorHeader, fetchFailure(err))
		return resp
	}
	return resp
}

func (w *Worker) cacheFirst(ctx context.Context, req *Request) *Response {
	if cached, ok := w.match(ctx, req); ok {
		return cached
	}

	resp, err := w.network.Fetch(ctx, req)
	if err != nil {
		w.logger.Error("cache first strategy failed", zap.String("url", redact(req.URL)), zap.Error(err))
		return unavailable("Offline")
	}
	if resp.OK() {
		w.put(ctx, w.StaticCacheName(), req, resp)
	}
	return resp
}

func (w *Worker) networkFirst(ctx context.Context, req *Request) *Response {
	resp, err := w.network.Fetch(ctx, req)
	if err == nil {
		if resp.OK() {
			w.put(ctx, w.DynamicCacheName(), req, resp)
		}
		return resp
	}

	w.logger.Warn("network request failed, trying cache", zap.String("url", redact(req.URL)), zap.Error(err))
	if cached, ok := w.match(ctx, req); ok {
		return cached
	}
	return w.networkUnavailable(err)
}

func (w *Worker) staleWhileRevalidate(ctx context.Context, req *Request) *Response {
	if cached, ok := w.match(ctx, req); ok {
		w.revalidations.Add(1)
		go func() {
			defer w.revalidations.Done()
			if _, err := w.revalidate(context.WithoutCancel(ctx), req); err != nil {
				w.logger.Warn("background revalidation failed", zap.String("url", redact(req.URL)), zap.Error(err))
			}
		}()
		return cached
	}

	resp, err := w.revalidate(ctx, req)
	if err != nil {
		w.logger.Warn("network request failed", zap.String("url", redact(req.URL)), zap.Error(err))
		return unavailable("Offline")
	}
	return resp
}

func (w *Worker) revalidate(ctx context.Context, req *Request) (*Response, error) {
	resp, err := w.network.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.OK() {
		w.put(ctx, w.DynamicCacheName(), req, resp)
	}
	return resp, nil
}

// WaitRevalidations blocks until background stale-while-revalidate fetches finish.
func (w *Worker) WaitRevalidations() {
	w.revalidations.Wait()
}

func (w *Worker) match(ctx context.Context, req *Request) (*Response, bool) {
	entry, ok, err := w.storage.Match(ctx, req.Key())
	if err != nil {
		w.logger.Warn("cache lookup failed", zap.String("url", redact(req.URL)), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return entry.Response, true
}

func (w *Worker) put(ctx context.Context, cacheName string, req *Request, resp *Response) {
	entry := Entry{Key: req.Key(), URL: req.URL, Response: resp.Clone(), StoredAt: w.now()}
	if err := w.storage.Put(ctx, cacheName, entry); err != nil {
		w.logger.Warn("cache write failed", zap.String("cache", cacheName), zap.String("url", redact(req.URL)), zap.Error(err))
	}
}

// addAll fetches every URL and stores them only if all succeed.
func (w *Worker) addAll(ctx context.Context, cacheName string, urls []string) error {
	responses := make([]*Response, len(urls))
	requests := make([]*Request, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		req := &Request{Method: http.MethodGet, URL: u}
		requests[i] = req
		g.Go(func() error {
			resp, err := w.network.Fetch(gctx, req)
			if err != nil {
				return err
			}
			if !resp.OK() {
				return fmt.Errorf("fetch %s: status %d", u, resp.Status)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := w.storage.Open(ctx, cacheName); err != nil {
		return fmt.Errorf("open %s: %w", cacheName, err)
	}
	for i, req := range requests {
		entry := Entry{Key: req.Key(), URL: req.URL, Response: responses[i], StoredAt: w.now()}
		if err := w.storage.Put(ctx, cacheName, entry); err != nil {
			return fmt.Errorf("store %s: %w", req.URL, err)
		}
	}
	return nil
}

// Cleanup evicts entries older than the retention window from every namespace.
func (w *Worker) Cleanup(ctx context.Context) (int, error) {
	names, err := w.storage.Names(ctx)
	if err != nil {
		return 0, fmt.Errorf("list caches: %w", err)
	}

	cutoff := w.now().Add(-w.opts.Retention)
	evicted := 0
	for _, name := range names {
		entries, err := w.storage.Entries(ctx, name)
		if err != nil {
			return evicted, fmt.Errorf("list entries of %s: %w", name, err)
		}
		for _, entry := range entries {
			if !entry.Date().Before(cutoff) {
				continue
			}
			if err := w.storage.Remove(ctx, name, entry.Key); err != nil {
				return evicted, fmt.Errorf("evict %s: %w", entry.URL, err)
			}
			evicted++
		}
	}

	w.logger.Info("cache cleanup finished", zap.Int("evicted", evicted))
	return evicted, nil
}

// HandleMessage answers a control message from the page.
func (w *Worker) HandleMessage(ctx context.Context, msg models.ControlMessage) (any, error) {
	w.logger.Debug("control message received", zap.String("type", string(msg.Type)))

	switch msg.Type {
	case models.ControlSkipWaiting:
		if err := w.SkipWaiting(ctx); err != nil {
			return nil, err
		}
		return reply{"state": w.State().String()}, nil
	case models.ControlGetVersion:
		return models.VersionReply{
			Version:   w.CacheName(),
			Timestamp: w.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}, nil
	case models.ControlCacheURLs:
		urls := make([]string, 0, len(msg.Payload))
		for _, ref := range msg.Payload {
			u := w.resolve(ref)
			if !w.cacheable(u) {
				return nil, fmt.Errorf("%w: %s", ErrForeignURL, redact(u))
			}
			urls = append(urls, u)
		}
		if err := w.addAll(ctx, w.DynamicCacheName(), urls); err != nil {
			return nil, fmt.Errorf("cache urls: %w", err)
		}
		return reply{"cached": len(urls)}, nil
	case models.ControlCleanupCache:
		evicted, err := w.Cleanup(ctx)
		if err != nil {
			return nil, err
		}
		return reply{"evicted": evicted}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, msg.Type)
}

func (w *Worker) networkUnavailable(cause error) *Response {
	body, _ := json.Marshal(map[string]string{
		"error":     "Network unavailable",
		"message":   "Please check your internet connection",
		"timestamp": w.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set(FetchErrorHeader, fetchFailure(cause))
	return &Response{
		Status:     http.StatusServiceUnavailable,
		StatusText: http.StatusText(http.StatusServiceUnavailable),
		Header:     header,
		Body:       body,
	}
}

func (w *Worker) resolve(ref string) string {
	base, err := url.Parse(w.opts.Origin)
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// cacheable reports whether rawURL is on the console origin or an API host.
func (w *Worker) cacheable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.User != nil {
		return false
	}
	if origin, err := url.Parse(w.opts.Origin); err == nil && origin.Host != "" &&
		strings.EqualFold(u.Scheme, origin.Scheme) && strings.EqualFold(u.Host, origin.Host) {
		return true
	}
	return w.isAPIRequest(u.String())
}

// fetchFailure drops the request URL, which may hold an API token, from err.
func fetchFailure(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return strings.ReplaceAll(err.Error(), "\n", " ")
}

func unavailable(body string) *Response {
	return textResponse(http.StatusServiceUnavailable, body)
}

// redact hides the trailing API token segment of gateway URLs in logs.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.HasPrefix(u.Path, "/waInstance") {
		return rawURL
	}
	if i := strings.LastIndex(u.Path, "/"); i > 0 {
		u.Path = u.Path[:i+1] + "***"
	}
	return u.String()
}

type reply = map[string]any
