package models

// Field names one of the five console inputs.
type Field string

const (
	FieldInstanceID  Field = "idInstance"
	FieldAPIToken    Field = "apiTokenInstance"
	FieldPhoneNumber Field = "phoneNumber"
	FieldMessageText Field = "messageText"
	FieldFileURL     Field = "fileUrl"
)

// Fields lists every console input in display order.
var Fields = []Field{FieldInstanceID, FieldAPIToken, FieldPhoneNumber, FieldMessageText, FieldFileURL}

// Form carries the raw values the page posts for a call.
type Form struct {
	InstanceID  string `json:"instanceId"`
	APIToken    string `json:"apiToken"`
	PhoneNumber string `json:"phoneNumber"`
	MessageText string `json:"messageText"`
	FileURL     string `json:"fileUrl"`
}

// Value returns the raw value of the given field.
func (f Form) Value(field Field) string {
	switch field {
	case FieldInstanceID:
		return f.InstanceID
	case FieldAPIToken:
		return f.APIToken
	case FieldPhoneNumber:
		return f.PhoneNumber
	case FieldMessageText:
		return f.MessageText
	case FieldFileURL:
		return f.FileURL
	}
	return ""
}

// Credentials extracts the credential pair from the form without trimming.
func (f Form) Credentials() Credentials {
	return Credentials{InstanceID: f.InstanceID, APIToken: f.APIToken}
}

// FieldResult is the outcome of validating a single field.
type FieldResult struct {
	Field  Field  `json:"field"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ValidateFieldRequest is the body accepted by the field validation endpoint.
type ValidateFieldRequest struct {
	Field Field  `json:"field" binding:"required"`
	Value string `json:"value"`
}

// FormatPhoneRequest is the body accepted by the phone formatting endpoint.
type FormatPhoneRequest struct {
	Raw string `json:"raw"`
}
