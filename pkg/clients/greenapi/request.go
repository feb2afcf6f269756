package greenapi

import (
	"fmt"
	"net/http"
)

// Method names one of the gateway calls the console can issue.
type Method string

const (
	MethodGetSettings      Method = "getSettings"
	MethodGetStateInstance Method = "getStateInstance"
	MethodSendMessage      Method = "sendMessage"
	MethodSendFileByURL    Method = "sendFileByUrl"
)

// Methods lists every supported gateway call.
var Methods = []Method{MethodGetSettings, MethodGetStateInstance, MethodSendMessage, MethodSendFileByURL}

// ChatIDSuffix turns a phone number into a personal chat identifier.
const ChatIDSuffix = "@c.us"

// ParseMethod maps a method name onto the closed set of supported calls.
func ParseMethod(name string) (Method, error) {
	for _, m := range Methods {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown method: %s", name)
}

// ChatID builds the gateway recipient identifier for a phone number.
func ChatID(phone string) string {
	return phone + ChatIDSuffix
}

// Request is one of the four gateway calls. The set is closed: only the types
// declared in this file implement it.
type Request interface {
	Method() Method
	Verb() string
	// Body returns the JSON payload, or nil for calls without one.
	Body() any
	sealed()
}

// GetSettings reads the instance settings.
type GetSettings struct{}

// GetStateInstance reads the instance authorization state.
type GetStateInstance struct{}

// SendMessage sends a text message to a chat.
type SendMessage struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// SendFileByURL sends a file hosted at URLFile to a chat.
type SendFileByURL struct {
	ChatID   string `json:"chatId"`
	URLFile  string `json:"urlFile"`
	FileName string `json:"fileName"`
}

func (GetSettings) Method() Method { return MethodGetSettings }
func (GetSettings) Verb() string   { return http.MethodGet }
func (GetSettings) Body() any      { return nil }
func (GetSettings) sealed()        {}

func (GetStateInstance) Method() Method { return MethodGetStateInstance }
func (GetStateInstance) Verb() string   { return http.MethodGet }
func (GetStateInstance) Body() any      { return nil }
func (GetStateInstance) sealed()        {}

func (SendMessage) Method() Method { return MethodSendMessage }
func (SendMessage) Verb() string   { return http.MethodPost }
func (r SendMessage) Body() any    { return r }
func (SendMessage) sealed()        {}

func (SendFileByURL) Method() Method { return MethodSendFileByURL }
func (SendFileByURL) Verb() string   { return http.MethodPost }
func (r SendFileByURL) Body() any    { return r }
func (SendFileByURL) sealed()        {}
