// Package whatsapp is the WhatsApp Business slice of the CRM client: account
// lifecycle, the OAuth linking flow, and conversation sync over the shared
// inbox table.
package whatsapp

import (
	"strings"
	"time"

	"estate-inbox/internal/inbox"
)

type Status string

const (
	StatusPending      Status = "PENDING"
	StatusConnected    Status = "CONNECTED"
	StatusError        Status = "ERROR"
	StatusDisconnected Status = "DISCONNECTED"
)

func normalizeStatus(s Status) Status {
	return Status(strings.ToUpper(strings.TrimSpace(string(s))))
}

// Account is a WhatsApp Business phone number registered with the backend.
// The backend calls Status "connection_status".
type Account struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	PhoneNumber       string     `json:"phoneNumber"`
	PhoneNumberID     string     `json:"phoneNumberId"`
	BusinessAccountID string     `json:"businessAccountId"`
	AccessToken       string     `json:"accessToken,omitempty"`
	WebhookSecret     string     `json:"webhookSecret,omitempty"`
	BusinessName      string     `json:"businessName,omitempty"`
	Status            Status     `json:"status"`
	IsActive          bool       `json:"isActive"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	LastVerifiedAt    *time.Time `json:"lastVerifiedAt,omitempty"`
	ErrorMessage      string     `json:"errorMessage,omitempty"`
}

// AccountForm is the create form. Handlers validate it before Create.
type AccountForm struct {
	Name              string `json:"name" binding:"required,min=2,max=100"`
	PhoneNumber       string `json:"phoneNumber" binding:"required,e164"`
	PhoneNumberID     string `json:"phoneNumberId" binding:"required,numeric"`
	BusinessAccountID string `json:"businessAccountId" binding:"required,numeric"`
	AccessToken       string `json:"accessToken" binding:"required"`
	WebhookSecret     string `json:"webhookSecret,omitempty" binding:"omitempty,min=8"`
	BusinessName      string `json:"businessName,omitempty" binding:"omitempty,max=200"`
}

// AccountPatch is a partial update; nil fields are left alone.
type AccountPatch struct {
	Name          *string `json:"name,omitempty" binding:"omitempty,min=2,max=100"`
	PhoneNumber   *string `json:"phoneNumber,omitempty" binding:"omitempty,e164"`
	AccessToken   *string `json:"accessToken,omitempty" binding:"omitempty,min=1"`
	WebhookSecret *string `json:"webhookSecret,omitempty" binding:"omitempty,min=8"`
	BusinessName  *string `json:"businessName,omitempty" binding:"omitempty,max=200"`
}

// Template is an approved message template of an account.
type Template struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Language   string           `json:"language"`
	Category   string           `json:"category"`
	Status     string           `json:"status"`
	Components []map[string]any `json:"components,omitempty"`
}

type (
	Conversation = inbox.Conversation
	Message      = inbox.Message
)

// MediaMessage is an outgoing attachment. URL must be reachable by the
// backend; see media.Stager for uploading local files.
type MediaMessage struct {
	Type     string `json:"type" binding:"required,oneof=image video audio document"`
	URL      string `json:"url" binding:"required,url"`
	Caption  string `json:"caption,omitempty" binding:"omitempty,max=1024"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// TemplateMessage sends an approved template.
type TemplateMessage struct {
	Name       string   `json:"name" binding:"required"`
	Language   string   `json:"language" binding:"required,min=2,max=10"`
	Parameters []string `json:"parameters,omitempty"`
}
