package models

// ControlType enumerates the messages the page may post to the cache worker.
type ControlType string

const (
	ControlSkipWaiting  ControlType = "SKIP_WAITING"
	ControlGetVersion   ControlType = "GET_VERSION"
	ControlCacheURLs    ControlType = "CACHE_URLS"
	ControlCleanupCache ControlType = "CLEANUP_CACHE"
)

// ControlMessage is a page-to-worker message.
type ControlMessage struct {
	Type    ControlType `json:"type" binding:"required"`
	Payload []string    `json:"payload,omitempty"`
}

// VersionReply answers GET_VERSION.
type VersionReply struct {
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}
