// Package tutorial records whether a user has finished the guided tour.
package tutorial

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/ocean-data-service/internal/domain"
	"github.com/couchcryptid/ocean-data-service/internal/store"
)

const keyPrefix = "tutorial:completed:"

// Status is the completion flag for one user.
type Status struct {
	User      string `json:"user"`
	Completed bool   `json:"completed"`
}

// Tracker stores completion flags in a key-value store.
type Tracker struct {
	store store.Store
}

// NewTracker creates a Tracker over s.
func NewTracker(s store.Store) *Tracker {
	return &Tracker{store: s}
}

// Completed reports whether user has finished the tutorial. Unknown users
// have not.
func (t *Tracker) Completed(ctx context.Context, user string) (Status, error) {
	key, err := userKey(user)
	if err != nil {
		return Status{}, err
	}
	v, err := t.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return Status{User: user}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("read tutorial status: %w", err)
	}
	return Status{User: user, Completed: v == "true"}, nil
}

// Complete marks the tutorial finished for user.
func (t *Tracker) Complete(ctx context.Context, user string) (Status, error) {
	key, err := userKey(user)
	if err != nil {
		return Status{}, err
	}
	if err := t.store.Set(ctx, key, "true"); err != nil {
		return Status{}, fmt.Errorf("save tutorial status: %w", err)
	}
	return Status{User: user, Completed: true}, nil
}

// Reset clears the flag so the tutorial shows again.
func (t *Tracker) Reset(ctx context.Context, user string) (Status, error) {
	key, err := userKey(user)
	if err != nil {
		return Status{}, err
	}
	if err := t.store.Clear(ctx, key); err != nil {
		return Status{}, fmt.Errorf("clear tutorial status: %w", err)
	}
	return Status{User: user}, nil
}

func userKey(user string) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" || len(user) > 128 {
		return "", fmt.Errorf("%w: user id must be 1-128 characters", domain.ErrValidation)
	}
	return keyPrefix + user, nil
}
