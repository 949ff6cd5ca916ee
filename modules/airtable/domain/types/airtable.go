package types

import (
	"time"

	"golang.org/x/oauth2"
)

type Base struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PermissionLevel string `json:"permissionLevel"`
}

type Choice struct {
	ID    string `json:"id" mapstructure:"id"`
	Name  string `json:"name" mapstructure:"name"`
	Color string `json:"color,omitempty" mapstructure:"color"`
}

type Field struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

type Table struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	PrimaryFieldID string  `json:"primaryFieldId"`
	Description    string  `json:"description,omitempty"`
	Fields         []Field `json:"fields"`
}

func (t Table) Field(id string) (Field, bool) {
	for _, f := range t.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

type User struct {
	ID     string   `json:"id"`
	Email  string   `json:"email,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// Connection is an owner's authorized Airtable account. OwnerID is the
// Airtable user id and doubles as the form owner key.
type Connection struct {
	OwnerID     string        `json:"ownerId"`
	Email       string        `json:"email,omitempty"`
	Scopes      []string      `json:"scopes,omitempty"`
	Token       *oauth2.Token `json:"token"`
	ConnectedAt time.Time     `json:"connectedAt"`
}

// PendingAuth is the server side half of an authorization request, keyed by
// its OAuth state value.
type PendingAuth struct {
	State     string    `json:"state"`
	Verifier  string    `json:"verifier"`
	ReturnTo  string    `json:"returnTo,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type CreatedRecord struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}
