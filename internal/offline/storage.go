package offline

import (
	"context"
	"net/http"
	"time"
)

// Response is the cacheable form of an HTTP response.
type Response struct {
	Status     int
	StatusText string
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status, the only kind of response the worker stores.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Clone returns a deep copy so cached bytes are never shared with callers.
func (r *Response) Clone() *Response {
	return &Response{
		Status:     r.Status,
		StatusText: r.StatusText,
		Header:     r.Header.Clone(),
		Body:       append([]byte(nil), r.Body...),
	}
}

// Entry is a stored response keyed by request identity.
type Entry struct {
	Key      string
	URL      string
	Response *Response
	StoredAt time.Time
}

// Date returns the response Date header, or the time the entry was stored when
// the header is missing or malformed.
func (e Entry) Date() time.Time {
	if e.Response != nil {
		if raw := e.Response.Header.Get("Date"); raw != "" {
			if t, err := http.ParseTime(raw); err == nil {
				return t
			}
		}
	}
	return e.StoredAt
}

// Storage is a set of named cache namespaces. Writes are last-write-wins.
type Storage interface {
	// Open creates the namespace if it does not exist yet.
	Open(ctx context.Context, name string) error
	// Names lists namespaces in creation order.
	Names(ctx context.Context) ([]string, error)
	// Delete drops a namespace and everything in it.
	Delete(ctx context.Context, name string) (bool, error)
	Put(ctx context.Context, name string, entry Entry) error
	Get(ctx context.Context, name, key string) (Entry, bool, error)
	// Match looks key up across namespaces in creation order.
	Match(ctx context.Context, key string) (Entry, bool, error)
	Entries(ctx context.Context, name string) ([]Entry, error)
	Remove(ctx context.Context, name, key string) error
}
