package state

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
)

// #region vector

// Vector maps a dimension key to a score or a confidence value.
type Vector map[string]float64

// Zero returns a vector with every key set to 0.
func Zero(keys []string) Vector {
	v := make(Vector, len(keys))
	for _, k := range keys {
		v[k] = 0
	}
	return v
}

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

// Keys returns v's keys in lexical order.
func (v Vector) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CheckKeys reports an error unless v has exactly the given key set.
func CheckKeys(v Vector, keys []string) error {
	if len(v) != len(keys) {
		return fmt.Errorf("key set size %d, want %d", len(v), len(keys))
	}
	for _, k := range keys {
		if _, ok := v[k]; !ok {
			return fmt.Errorf("missing key %q", k)
		}
	}
	return nil
}

// CheckFinite reports an error if any value in v is NaN or infinite.
func CheckFinite(v Vector) error {
	for _, k := range v.Keys() {
		if math.IsNaN(v[k]) || math.IsInf(v[k], 0) {
			return fmt.Errorf("key %q is not finite", k)
		}
	}
	return nil
}

// #endregion vector

// #region turn

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one exchanged message within an inventory's conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// #endregion turn

// #region assessment

// Key addresses per-(user, inventory) state.
type Key struct {
	UserID    string
	Inventory inventory.ID
}

// Assessment is the running estimate for one user on one inventory.
// Finished is only ever taken from an oracle observation.
type Assessment struct {
	VersionID  string
	ParentID   string
	UserID     string
	Inventory  inventory.ID
	Scores     Vector
	Confidence Vector
	Finished   bool
	CreatedAt  time.Time
}

// Initial returns the zero assessment a user starts an inventory with.
// It has no version until it is first committed.
func Initial(userID string, p inventory.Profile) Assessment {
	return Assessment{
		UserID:     userID,
		Inventory:  p.ID,
		Scores:     Zero(p.Dimensions),
		Confidence: Zero(p.Dimensions),
	}
}

// Key returns the (user, inventory) address of a.
func (a Assessment) Key() Key {
	return Key{UserID: a.UserID, Inventory: a.Inventory}
}

// Clone returns a deep copy of a.
func (a Assessment) Clone() Assessment {
	a.Scores = a.Scores.Clone()
	a.Confidence = a.Confidence.Clone()
	return a
}

// #endregion assessment

// #region observation

// Observation is one structured scoring result returned by the oracle.
type Observation struct {
	Scores       Vector `json:"scores"`
	Confidence   Vector `json:"confidence"`
	NextQuestion string `json:"next_question"`
	ShouldFinish bool   `json:"should_finish"`
}

// #endregion observation

// #region store

// ErrNotFound is returned by lookups that have no record.
var ErrNotFound = errors.New("not found")

// Commit bundles everything one successful turn persists. Stores apply it
// atomically: either every turn and the assessment are written, or nothing is.
type Commit struct {
	Key         Key
	Turns       []Turn
	Assessment  Assessment
	MetricsJSON string
}

// Store is the keyed persistence boundary for sessions, assessments, and
// conversation history. Implementations must be safe for concurrent use.
type Store interface {
	// Stage returns the user's stage index and whether a session exists.
	Stage(ctx context.Context, userID string) (int, bool, error)
	SetStage(ctx context.Context, userID string, index int) error

	// Assessment returns the current assessment for key and whether one exists.
	Assessment(ctx context.Context, key Key) (Assessment, bool, error)

	// History returns every turn recorded for key, oldest first.
	History(ctx context.Context, key Key) ([]Turn, error)
	AppendTurn(ctx context.Context, key Key, turn Turn) error

	CommitTurn(ctx context.Context, c Commit) error

	// DeleteUser removes the session, every assessment, and every history for the user.
	DeleteUser(ctx context.Context, userID string) error

	Close() error
}

// #endregion store
