package models

import "encoding/json"

// EnvelopeStatus tells the page which branch of the envelope is populated.
type EnvelopeStatus string

const (
	StatusSuccess EnvelopeStatus = "success"
	StatusError   EnvelopeStatus = "error"
)

// Envelope is the uniform wrapper rendered for every gateway call, successful or not.
type Envelope struct {
	Timestamp string          `json:"timestamp"`
	Method    string          `json:"method"`
	Status    EnvelopeStatus  `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *EnvelopeError  `json:"error,omitempty"`
}

// EnvelopeError describes a failed call. Stack is only filled in diagnostic mode.
type EnvelopeError struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Stack   string `json:"stack,omitempty"`
}

// NoticeLevel mirrors the severity of a transient notification.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is the short user-facing message that accompanies every command outcome.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Outcome is what a dispatch hands back to the binding layer. Envelope is nil when
// the call was rejected before reaching the network.
type Outcome struct {
	Envelope *Envelope `json:"envelope,omitempty"`
	Notice   Notice    `json:"notice"`
}
