// Package llm adapts the hosted model providers to one request/response call.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrMissingCredential is returned when the configured credential is not
	// present in the environment at call time.
	ErrMissingCredential = errors.New("llm credential is not configured")
	// ErrEmptyResponse is returned when the provider answered without text.
	ErrEmptyResponse = errors.New("llm returned an empty response")
	// ErrNoUserTurn is returned when a request does not end with a user turn.
	ErrNoUserTurn = errors.New("llm request must end with a user turn")
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	// RoleSystem marks a note injected mid-conversation, e.g. a hidden trigger.
	RoleSystem Role = "system"
)

// Tier selects between the fast text model and the multimodal one.
type Tier int

const (
	TierFast Tier = iota
	TierVision
)

// Attachment is an inline binary part, already decoded.
type Attachment struct {
	MIMEType string
	Data     []byte
}

type Turn struct {
	Role        Role
	Text        string
	Attachments []Attachment
}

// Request is one generation call.
type Request struct {
	System          string
	Turns           []Turn
	Temperature     float32
	MaxOutputTokens int32
	// JSON asks the provider for a JSON object response.
	JSON bool
	Tier Tier
}

// Provider performs a single generation with no automatic retries.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	Close() error
}

// Connector builds a Provider for one call. Implementations read the
// credential when invoked, never at construction.
type Connector func(ctx context.Context) (Provider, error)

// Static returns a Connector that always hands out p.
func Static(p Provider) Connector {
	return func(context.Context) (Provider, error) { return p, nil }
}
