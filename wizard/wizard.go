// Package wizard tracks a user's progress through the three-step flow:
// address entry, target selection, route results. Sessions are held in
// memory and expire after a period of inactivity.
package wizard

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/revierkompass/revierkompass/geomodel"
)

type Step string

const (
	StepStartAddress    Step = "start-address"
	StepTargetSelection Step = "target-selection"
	StepRoutesResults   Step = "routes-results"
)

var (
	ErrNotFound       = errors.New("wizard session not found")
	ErrNoStartAddress = errors.New("no start address set")
	ErrNoTargets      = errors.New("no targets selected")
)

type StartAddress struct {
	Address     string              `json:"address"`
	Coordinates orb.Point           `json:"coordinates"`
	Confidence  geomodel.Confidence `json:"confidence"`
}

type Session struct {
	ID              string                 `json:"id"`
	Step            Step                   `json:"step"`
	StartAddress    *StartAddress          `json:"start_address,omitempty"`
	SelectedTargets []string               `json:"selected_targets,omitempty"`
	Routes          []geomodel.RouteResult `json:"routes,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Store keeps sessions in a concurrent map. Mutations go through
// Compute so concurrent requests on the same session cannot interleave.
type Store struct {
	sessions *xsync.MapOf[string, Session]
	ttl      time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: xsync.NewMapOf[string, Session](),
		ttl:      ttl,
	}
}

func (s *Store) Create() Session {
	session := Session{
		ID:        uuid.NewString(),
		Step:      StepStartAddress,
		UpdatedAt: time.Now(),
	}
	s.sessions.Store(session.ID, session)
	return session
}

func (s *Store) Get(id string) (Session, bool) {
	return s.sessions.Load(id)
}

// SetStart records the validated start address and moves the session to
// target selection. A new start discards any previously selected targets
// and computed routes.
func (s *Store) SetStart(id string, start StartAddress) (Session, error) {
	return s.update(id, func(session *Session) error {
		session.StartAddress = &start
		session.SelectedTargets = nil
		session.Routes = nil
		session.Step = StepTargetSelection
		return nil
	})
}

// SelectTargets records the chosen targets and moves the session to the
// results step. Requires a start address; discards stale routes.
func (s *Store) SelectTargets(id string, targetIDs []string) (Session, error) {
	return s.update(id, func(session *Session) error {
		if session.StartAddress == nil {
			return ErrNoStartAddress
		}
		if len(targetIDs) == 0 {
			return ErrNoTargets
		}
		session.SelectedTargets = targetIDs
		session.Routes = nil
		session.Step = StepRoutesResults
		return nil
	})
}

// SetRoutes attaches computed route results to the session.
func (s *Store) SetRoutes(id string, routes []geomodel.RouteResult) (Session, error) {
	return s.update(id, func(session *Session) error {
		if len(session.SelectedTargets) == 0 {
			return ErrNoTargets
		}
		session.Routes = routes
		return nil
	})
}

// Reset returns the session to a blank first step, keeping its id.
func (s *Store) Reset(id string) (Session, error) {
	return s.update(id, func(session *Session) error {
		*session = Session{ID: session.ID, Step: StepStartAddress}
		return nil
	})
}

func (s *Store) update(id string, apply func(*Session) error) (Session, error) {
	var updateErr error
	session, ok := s.sessions.Compute(id, func(old Session, loaded bool) (Session, bool) {
		if !loaded {
			updateErr = ErrNotFound
			return old, true
		}
		if err := apply(&old); err != nil {
			updateErr = err
			return old, false
		}
		old.UpdatedAt = time.Now()
		return old, false
	})
	if updateErr != nil {
		return Session{}, updateErr
	}
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

// Sweep drops sessions idle longer than the store TTL and reports how
// many were removed. The serve loop calls this periodically.
func (s *Store) Sweep(now time.Time) int {
	removed := 0
	s.sessions.Range(func(id string, session Session) bool {
		if now.Sub(session.UpdatedAt) >= s.ttl {
			s.sessions.Delete(id)
			removed++
		}
		return true
	})
	return removed
}

func (s *Store) Len() int {
	return s.sessions.Size()
}
