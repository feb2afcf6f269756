package models

import "strings"

// Credentials identify a tenant instance on the GREEN-API gateway.
type Credentials struct {
	InstanceID string `json:"instanceId" bson:"instanceId"`
	APIToken   string `json:"apiToken" bson:"apiToken"`
}

// Trimmed returns a copy with surrounding whitespace removed from both fields.
func (c Credentials) Trimmed() Credentials {
	return Credentials{
		InstanceID: strings.TrimSpace(c.InstanceID),
		APIToken:   strings.TrimSpace(c.APIToken),
	}
}

// IsZero reports whether neither field carries a value.
func (c Credentials) IsZero() bool {
	return c.InstanceID == "" && c.APIToken == ""
}
