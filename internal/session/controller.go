// Package session runs match logging forms: one FormState per session, bound
// to the identity that opened it, fed by discrete events until it is
// submitted, cancelled or left idle too long.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/dal"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/payload"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/pubsub"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/rules"
)

var (
	ErrIncomplete      = errors.New("form is incomplete")
	ErrUnauthorized    = errors.New("only the session owner can modify this form")
	ErrSessionNotFound = errors.New("session not found")
	ErrPersistence     = errors.New("failed to record match")
)

// DefaultIdleTimeout is how long a session survives without events
const DefaultIdleTimeout = 15 * time.Minute

// Event types published on the bus
const (
	TopicSessionStarted   = "session:started"
	TopicSessionUpdated   = "session:updated"
	TopicSessionCancelled = "session:cancelled"
	TopicSessionExpired   = "session:expired"
	TopicMatchRecorded    = "match:recorded"
)

// Publisher receives lifecycle notifications
type Publisher interface {
	Publish(pubsub.Event)
}

// Options configures a Controller
type Options struct {
	Engine  *rules.Engine
	Builder *payload.Builder
	Store   dal.MatchStore

	// Optional
	Events      Publisher
	Labels      payload.Labels
	IdleTimeout time.Duration
	Now         func() time.Time
}

// Outcome is the view of a session after an event
type Outcome struct {
	SessionID  string               `json:"sessionId"`
	Owner      string               `json:"owner"`
	State      models.FormState     `json:"state"`
	Complete   bool                 `json:"complete"`
	FreeForAll bool                 `json:"freeForAll"`
	Missing    []string             `json:"missing,omitempty"`
	Controls   rules.Controls       `json:"controls"`
	Summary    payload.Summary      `json:"summary"`
	Result     *models.InsertResult `json:"result,omitempty"`
	Closed     bool                 `json:"closed"`
}

type session struct {
	mu     sync.Mutex
	id     string
	owner  string
	state  models.FormState
	closed atomic.Bool

	// guarded by Controller.mu
	lastActive time.Time
}

// Controller owns every open session
type Controller struct {
	engine  *rules.Engine
	builder *payload.Builder
	store   dal.MatchStore
	events  Publisher
	labels  payload.Labels
	idle    time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewController creates a controller
func NewController(opts Options) (*Controller, error) {
	if opts.Engine == nil || opts.Builder == nil || opts.Store == nil {
		return nil, errors.New("session: engine, builder and store are required")
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		engine:   opts.Engine,
		builder:  opts.Builder,
		store:    opts.Store,
		events:   opts.Events,
		labels:   opts.Labels,
		idle:     opts.IdleTimeout,
		now:      opts.Now,
		sessions: make(map[string]*session),
	}, nil
}

// Start opens a session for owner with the submitter prefilled
func (c *Controller) Start(owner, submitter string) string {
	s := &session{
		id:    uuid.NewString(),
		owner: owner,
		state: models.FormState{}.Clone(),
	}
	s.state.Submitter = submitter

	c.mu.Lock()
	s.lastActive = c.now()
	c.sessions[s.id] = s
	c.mu.Unlock()

	logger.Info("Session started", "session_id", s.id, "owner", owner)
	c.publish(TopicSessionStarted, map[string]interface{}{
		"sessionId": s.id,
		"owner":     owner,
	})
	return s.id
}

// Snapshot returns the current view of a session without changing it
func (c *Controller) Snapshot(id, owner string) (Outcome, error) {
	s, err := c.acquire(id, owner)
	if err != nil {
		return Outcome{}, err
	}
	defer s.mu.Unlock()
	return c.outcome(s), nil
}

// HandleEvent applies ev to the session. Events for one session are
// serialized; the whole read-modify-write, including a submit's remote
// calls, happens under the session lock.
func (c *Controller) HandleEvent(ctx context.Context, id, owner string, ev Event) (Outcome, error) {
	s, err := c.acquire(id, owner)
	if err != nil {
		return Outcome{}, err
	}
	defer s.mu.Unlock()

	log := logger.With("session_id", id, "event", string(ev.Kind))

	switch ev.Kind {
	case EventSubmit:
		return c.submit(ctx, s)
	case EventCancel:
		c.discard(s)
		log.Info("Session cancelled")
		c.publish(TopicSessionCancelled, map[string]interface{}{"sessionId": id})
		out := c.outcome(s)
		out.Closed = true
		return out, nil
	}

	next, err := c.apply(s.state, ev)
	if err != nil {
		log.Debug("Event rejected", "error", err)
		return c.outcome(s), err
	}
	s.state = next

	out := c.outcome(s)
	c.publish(TopicSessionUpdated, map[string]interface{}{
		"sessionId": id,
		"event":     string(ev.Kind),
		"complete":  out.Complete,
	})
	return out, nil
}

// Cancel discards a session regardless of owner
func (c *Controller) Cancel(id string) error {
	c.mu.Lock()
	s, ok := c.sessions[id]
	if ok {
		delete(c.sessions, id)
	}
	c.mu.Unlock()

	if !ok || s.closed.Swap(true) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	logger.Info("Session cancelled", "session_id", id)
	c.publish(TopicSessionCancelled, map[string]interface{}{"sessionId": id})
	return nil
}

// Sweep drops sessions idle past the timeout and returns how many it removed
func (c *Controller) Sweep() int {
	now := c.now()
	var expired []string

	c.mu.Lock()
	for id, s := range c.sessions {
		if now.Sub(s.lastActive) > c.idle {
			s.closed.Store(true)
			delete(c.sessions, id)
			expired = append(expired, id)
		}
	}
	c.mu.Unlock()

	for _, id := range expired {
		logger.Info("Session expired", "session_id", id)
		c.publish(TopicSessionExpired, map[string]interface{}{"sessionId": id})
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Len returns the number of open sessions
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Controller) Engine() *rules.Engine { return c.engine }

// acquire finds a live session, checks the owner and returns it locked
func (c *Controller) acquire(id, owner string) (*session, error) {
	c.mu.Lock()
	s, ok := c.sessions[id]
	if ok && c.now().Sub(s.lastActive) > c.idle {
		s.closed.Store(true)
		delete(c.sessions, id)
		ok = false
		c.mu.Unlock()
		logger.Info("Session expired", "session_id", id)
		c.publish(TopicSessionExpired, map[string]interface{}{"sessionId": id})
	} else {
		if ok && s.owner == owner {
			s.lastActive = c.now()
		}
		c.mu.Unlock()
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	if s.owner != owner {
		logger.Warn("Rejected event from non-owner", "session_id", id, "owner", owner)
		return nil, ErrUnauthorized
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

func (c *Controller) apply(state models.FormState, ev Event) (models.FormState, error) {
	switch ev.Kind {
	case EventSelectMode:
		return c.engine.ApplyModeChange(state, ev.Code)
	case EventSelectMap:
		return c.engine.ApplyMapChange(state, ev.Code)
	case EventPickRoster:
		return c.engine.ApplyRosterPick(state, ev.Side, ev.Picks)
	case EventPickFFA:
		return c.engine.ApplyFFAPick(state, ev.Picks)
	case EventSetScores:
		return c.engine.ApplyScores(state, ev.Submitter, ev.GuildScore, ev.JSOCScore)
	case EventSelectTeamSize:
		return c.engine.ApplyTeamSize(state, ev.Side, ev.Size)
	case EventSelectFFASize:
		return c.engine.ApplyFFASize(state, ev.Size)
	default:
		return state, fmt.Errorf("%w: unknown event %q", rules.ErrValidation, ev.Kind)
	}
}

// submit persists a complete form once. A failed insert keeps the session
// open so the user can retry.
func (c *Controller) submit(ctx context.Context, s *session) (Outcome, error) {
	if !c.engine.IsComplete(s.state) {
		return c.outcome(s), fmt.Errorf("%w: missing %v", ErrIncomplete, c.engine.Missing(s.state))
	}

	record := c.builder.Build(ctx, s.state)
	result, err := c.store.InsertMatch(ctx, record)
	if err != nil {
		logger.Error("Match insert failed", "session_id", s.id, "error", err)
		return c.outcome(s), fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if result == nil {
		result = &models.InsertResult{Rows: []models.MatchRecord{record}}
	}

	c.discard(s)
	logger.Info("Match recorded", "session_id", s.id, "by_who", s.state.Submitter, "dry_run", result.DryRun)
	c.publish(TopicMatchRecorded, map[string]interface{}{
		"sessionId": s.id,
		"dryRun":    result.DryRun,
		"record":    map[string]interface{}(record),
	})

	out := c.outcome(s)
	out.Result = result
	out.Closed = true
	return out, nil
}

// discard removes a session the caller holds locked
func (c *Controller) discard(s *session) {
	s.closed.Store(true)
	c.mu.Lock()
	if cur, ok := c.sessions[s.id]; ok && cur == s {
		delete(c.sessions, s.id)
	}
	c.mu.Unlock()
}

func (c *Controller) outcome(s *session) Outcome {
	state := s.state.Clone()
	return Outcome{
		SessionID:  s.id,
		Owner:      s.owner,
		State:      state,
		Complete:   c.engine.IsComplete(state),
		FreeForAll: c.engine.IsFreeForAll(state),
		Missing:    c.engine.Missing(state),
		Controls:   c.engine.Controls(state),
		Summary:    payload.BuildSummary(c.engine.Catalog(), c.labels, state),
		Closed:     s.closed.Load(),
	}
}

func (c *Controller) publish(eventType string, data map[string]interface{}) {
	if c.events == nil {
		return
	}
	c.events.Publish(pubsub.Event{Type: eventType, Payload: data})
}
