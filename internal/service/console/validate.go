package console

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mamadbah2/greenconsole/internal/domain/models"
)

const (
	minTokenLength   = 20
	maxMessageLength = 4096
	maxPhoneDigits   = 15

	// FallbackFileName is used when a file URL has no usable trailing segment.
	FallbackFileName = "file"
)

var (
	instanceIDPattern = regexp.MustCompile(`^\d{10,}$`)
	phonePattern      = regexp.MustCompile(`^\d{11,15}$`)
	nonDigitPattern   = regexp.MustCompile(`\D`)
)

// ValidationError is a local rejection; no network call is attempted.
type ValidationError struct {
	Message string
	Fields  []models.FieldResult
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks a single field against its format contract. Optional fields are
// valid when empty; only populated values are checked.
func Validate(field models.Field, value string) models.FieldResult {
	v := strings.TrimSpace(value)
	res := models.FieldResult{Field: field, Valid: true}

	switch field {
	case models.FieldInstanceID:
		switch {
		case v == "":
			res.Reason = "Instance ID is required"
		case !instanceIDPattern.MatchString(v):
			res.Reason = "Invalid instance ID format"
		}
	case models.FieldAPIToken:
		switch {
		case v == "":
			res.Reason = "API Token is required"
		case utf8.RuneCountInString(v) < minTokenLength:
			res.Reason = "API Token too short"
		}
	case models.FieldPhoneNumber:
		if v != "" && !phonePattern.MatchString(v) {
			res.Reason = "Phone number should be 11-15 digits"
		}
	case models.FieldMessageText:
		if utf8.RuneCountInString(v) > maxMessageLength {
			res.Reason = "Message too long (max 4096 characters)"
		}
	case models.FieldFileURL:
		if v != "" && !isValidURL(v) {
			res.Reason = "Invalid URL format"
		}
	default:
		res.Reason = "Unknown field"
	}

	res.Valid = res.Reason == ""
	return res
}

// Session holds the trimmed credentials captured by a successful credential check.
type Session struct {
	InstanceID string
	APIToken   string
}

// Credentials converts the session back into the persisted shape.
func (s Session) Credentials() models.Credentials {
	return models.Credentials{InstanceID: s.InstanceID, APIToken: s.APIToken}
}

// ValidateCredentials requires both credential fields to be valid and captures
// their trimmed values. Failures carry a single aggregate message.
func ValidateCredentials(form models.Form) (Session, error) {
	id := Validate(models.FieldInstanceID, form.InstanceID)
	token := Validate(models.FieldAPIToken, form.APIToken)
	if !id.Valid || !token.Valid {
		return Session{}, &ValidationError{
			Message: "Please fill in valid credentials",
			Fields:  invalidOnly(id, token),
		}
	}

	return Session{
		InstanceID: strings.TrimSpace(form.InstanceID),
		APIToken:   strings.TrimSpace(form.APIToken),
	}, nil
}

// ExtractFileName returns the last segment of rawURL's escaped path, or
// FallbackFileName when rawURL is not absolute or the path ends in "/".
func ExtractFileName(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return FallbackFileName
	}

	escaped := u.EscapedPath()
	name := escaped[strings.LastIndex(escaped, "/")+1:]
	if name == "" {
		return FallbackFileName
	}
	return name
}

// FormatPhoneInput strips every non-digit and truncates to the maximum phone length.
func FormatPhoneInput(raw string) string {
	digits := nonDigitPattern.ReplaceAllString(raw, "")
	if len(digits) > maxPhoneDigits {
		digits = digits[:maxPhoneDigits]
	}
	return digits
}

func isValidURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

func invalidOnly(results ...models.FieldResult) []models.FieldResult {
	var out []models.FieldResult
	for _, r := range results {
		if !r.Valid {
			out = append(out, r)
		}
	}
	return out
}
