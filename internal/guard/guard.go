// Package guard decides whether a namespace may enter the protected views or
// must be sent back to onboarding.
package guard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Lllllllleong/imigraflow/internal/store"
)

// OnboardingPath is where redirected callers are sent.
const OnboardingPath = "/onboarding"

// Decision is the outcome of a guard check. The zero value lets the caller in.
type Decision struct {
	Redirect bool   `json:"redirect"`
	Target   string `json:"target,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func redirect(reason string) Decision {
	return Decision{Redirect: true, Target: OnboardingPath, Reason: reason}
}

// Compatibility discards persisted state that no longer has the expected shape.
type Compatibility struct {
	store  *store.Store
	logger *zap.Logger
}

func NewCompatibility(s *store.Store, logger *zap.Logger) *Compatibility {
	return &Compatibility{store: s, logger: logger}
}

// Check leaves absent or well-formed state alone. Anything else wipes the whole
// namespace and asks for a redirect.
func (c *Compatibility) Check(ctx context.Context) (Decision, error) {
	raw, err := c.store.RawGlobalState(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return Decision{}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read global state: %w", err)
	}

	if reason := shapeProblem(raw); reason != "" {
		c.logger.Warn("discarding incompatible global state", zap.String("reason", reason))
		if err := c.store.ClearAll(ctx); err != nil {
			return Decision{}, fmt.Errorf("failed to clear incompatible state: %w", err)
		}
		return redirect(reason), nil
	}
	return Decision{}, nil
}

// shapeProblem returns "" when raw is a JSON object whose processes member is
// an array, and a short description of the problem otherwise.
func shapeProblem(raw []byte) string {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "state is not a JSON object"
	}
	processes, ok := doc["processes"]
	if !ok {
		return "state has no processes"
	}
	trimmed := bytes.TrimSpace(processes)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return "processes is not a list"
	}
	return ""
}

// Navigation only checks that some global state exists.
type Navigation struct {
	store *store.Store
}

func NewNavigation(s *store.Store) *Navigation {
	return &Navigation{store: s}
}

func (n *Navigation) Check(ctx context.Context) (Decision, error) {
	ok, err := n.store.HasGlobalState(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check global state: %w", err)
	}
	if !ok {
		return redirect("no state"), nil
	}
	return Decision{}, nil
}

// Guards runs the compatibility check followed by the navigation check.
type Guards struct {
	Compatibility *Compatibility
	Navigation    *Navigation
}

func New(s *store.Store, logger *zap.Logger) *Guards {
	return &Guards{
		Compatibility: NewCompatibility(s, logger),
		Navigation:    NewNavigation(s),
	}
}

// Enter returns the first redirect produced. Calling it repeatedly converges:
// after a wipe the navigation check keeps redirecting without touching storage.
func (g *Guards) Enter(ctx context.Context) (Decision, error) {
	d, err := g.Compatibility.Check(ctx)
	if err != nil || d.Redirect {
		return d, err
	}
	return g.Navigation.Check(ctx)
}
