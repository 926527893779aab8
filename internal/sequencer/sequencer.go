// Package sequencer tracks each user's position in the fixed inventory order.
package sequencer

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
)

// Position is a user's active stage.
type Position struct {
	Index   int
	Profile inventory.Profile
	Last    bool
}

// Sequencer maps users to stage indices over a catalog. The index never
// decreases except through a full user reset in the store.
type Sequencer struct {
	catalog *inventory.Catalog
	store   state.Store
}

// New returns a sequencer over catalog backed by store.
func New(catalog *inventory.Catalog, store state.Store) *Sequencer {
	return &Sequencer{catalog: catalog, store: store}
}

// Current returns the user's active stage, creating the session at index 0
// on first contact.
func (s *Sequencer) Current(ctx context.Context, userID string) (Position, error) {
	idx, ok, err := s.store.Stage(ctx, userID)
	if err != nil {
		return Position{}, fmt.Errorf("current stage: %w", err)
	}
	if !ok {
		if err := s.store.SetStage(ctx, userID, 0); err != nil {
			return Position{}, fmt.Errorf("create session: %w", err)
		}
		idx = 0
	}
	return s.position(idx)
}

// Peek reports the user's active inventory without creating a session.
func (s *Sequencer) Peek(ctx context.Context, userID string) (inventory.ID, error) {
	idx, _, err := s.store.Stage(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("peek stage: %w", err)
	}
	p, err := s.position(idx)
	if err != nil {
		return "", err
	}
	return p.Profile.ID, nil
}

// Advance moves the user to the next stage. On the last stage it reports
// done and changes nothing. It does not check the current stage's Finished flag.
func (s *Sequencer) Advance(ctx context.Context, userID string) (inventory.ID, bool, error) {
	cur, err := s.Current(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if cur.Last {
		return "", true, nil
	}
	next := cur.Index + 1
	if err := s.store.SetStage(ctx, userID, next); err != nil {
		return "", false, fmt.Errorf("advance stage: %w", err)
	}
	p, err := s.catalog.At(next)
	if err != nil {
		return "", false, err
	}
	return p.ID, false, nil
}

// AllComplete reports whether the user is on the last stage and its
// assessment is finished.
func (s *Sequencer) AllComplete(ctx context.Context, userID string) (bool, error) {
	idx, ok, err := s.store.Stage(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("stage: %w", err)
	}
	if !ok || idx != s.catalog.Len()-1 {
		return false, nil
	}
	last, err := s.catalog.At(idx)
	if err != nil {
		return false, err
	}
	a, ok, err := s.store.Assessment(ctx, state.Key{UserID: userID, Inventory: last.ID})
	if err != nil {
		return false, fmt.Errorf("last assessment: %w", err)
	}
	return ok && a.Finished, nil
}

func (s *Sequencer) position(idx int) (Position, error) {
	p, err := s.catalog.At(idx)
	if err != nil {
		return Position{}, fmt.Errorf("stored stage: %w", err)
	}
	return Position{Index: idx, Profile: p, Last: idx == s.catalog.Len()-1}, nil
}
