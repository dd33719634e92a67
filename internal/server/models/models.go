// Package models holds the server-side data shapes.
package models

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type RefreshToken struct {
	UserID  string
	Token   string
	Expires time.Time
}

// Record is one synced entity document. The server treats Doc as opaque;
// only the envelope fields participate in reconciliation.
type Record struct {
	OwnerID    string          `json:"-"`
	Collection string          `json:"-"`
	ID         string          `json:"id"`
	Deleted    bool            `json:"deleted"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Doc        json.RawMessage `json:"doc"`
}

// Collections lists the document collections the sync API accepts.
var Collections = map[string]bool{
	"expenses":        true,
	"incomes":         true,
	"categories":      true,
	"budgets":         true,
	"recurring_rules": true,
}
