// Package handlers exposes match logging sessions over HTTP: one session per
// form, driven by small JSON requests and observed through an SSE stream.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/auth"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/clickhouse"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/dal"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/payload"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/pubsub"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/rules"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/session"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
	maxBodyBytes     = 1 << 16
)

// Deps are the services behind the API. Matches and Stats may be nil.
type Deps struct {
	Sessions *session.Controller
	Bus      *pubsub.Bus
	Labels   payload.Labels
	Matches  dal.MatchLister
	Stats    clickhouse.Recorder
}

// APIHandlers contains all API handler methods
type APIHandlers struct {
	sessions *session.Controller
	bus      *pubsub.Bus
	labels   payload.Labels
	matches  dal.MatchLister
	stats    clickhouse.Recorder

	keepalive time.Duration
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(deps Deps) *APIHandlers {
	return &APIHandlers{
		sessions:  deps.Sessions,
		bus:       deps.Bus,
		labels:    deps.Labels,
		matches:   deps.Matches,
		stats:     deps.Stats,
		keepalive: 30 * time.Second,
	}
}

// catalogResponse is everything a client needs to draw the form
type catalogResponse struct {
	Modes          []models.Mode   `json:"modes"`
	Maps           []models.Map    `json:"maps"`
	Roster         []models.Player `json:"roster"`
	FreeForAllCode string          `json:"freeForAllCode"`
	Labels         payload.Labels  `json:"labels"`
	Limits         struct {
		TeamMin int `json:"teamMin"`
		TeamMax int `json:"teamMax"`
		FFAMin  int `json:"ffaMin"`
		FFAMax  int `json:"ffaMax"`
	} `json:"limits"`
	ExactRosterSize bool `json:"exactRosterSize"`
}

// GetCatalog returns modes, maps and roster
func (h *APIHandlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	engine := h.sessions.Engine()
	c := engine.Catalog()

	resp := catalogResponse{
		Modes:           c.Modes(),
		Maps:            c.Maps(),
		Roster:          c.Roster(),
		FreeForAllCode:  c.FreeForAllCode(),
		Labels:          h.labels,
		ExactRosterSize: engine.Policy().ExactRosterSize,
	}
	resp.Limits.TeamMin = rules.MinTeamPlayers
	resp.Limits.TeamMax = rules.MaxTeamPlayers
	resp.Limits.FFAMin = rules.MinFFAPlayers
	resp.Limits.FFAMax = rules.MaxFFAPlayers

	writeJSON(w, http.StatusOK, resp)
}

// StartSession opens a form for the signed in user
func (h *APIHandlers) StartSession(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)

	var req struct {
		Submitter string `json:"submitter"`
	}
	if err := decodeOptional(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if req.Submitter == "" {
		req.Submitter = user.DisplayName()
	}

	id := h.sessions.Start(user.ID, req.Submitter)
	out, err := h.sessions.Snapshot(id, user.ID)
	if err != nil {
		writeError(w, err, session.Outcome{})
		return
	}

	w.Header().Set("Location", "/api/sessions/"+id)
	writeJSON(w, http.StatusCreated, out)
}

// GetSession returns the current form
func (h *APIHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	out, err := h.sessions.Snapshot(chi.URLParam(r, "id"), auth.GetUser(r).ID)
	if err != nil {
		writeError(w, err, session.Outcome{})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CancelSession discards the form
func (h *APIHandlers) CancelSession(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, session.Cancel())
}

// SelectMode handles {"code": "HP"}
func (h *APIHandlers) SelectMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, session.SelectMode(req.Code))
}

// SelectMap handles {"code": "RAID"}
func (h *APIHandlers) SelectMap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, session.SelectMap(req.Code))
}

// PickRoster handles {"picks": [1, 2]} for the side in the path
func (h *APIHandlers) PickRoster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Picks []int `json:"picks"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, session.PickRoster(models.Side(chi.URLParam(r, "side")), req.Picks))
}

// PickFFA handles {"picks": [1, 2, 3]}
func (h *APIHandlers) PickFFA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Picks []int `json:"picks"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, session.PickFFA(req.Picks))
}

// SetScores handles the score prompt. Scores stay text so the rules see
// exactly what was typed.
func (h *APIHandlers) SetScores(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Submitter  string `json:"submitter"`
		GuildScore string `json:"guildScore"`
		JSOCScore  string `json:"jsocScore"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, session.SetScores(req.Submitter, req.GuildScore, req.JSOCScore))
}

// SelectSize handles {"side": "guild", "size": 4}; no side means the free
// for all size
func (h *APIHandlers) SelectSize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Side models.Side `json:"side"`
		Size int         `json:"size"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Side == "" {
		h.dispatch(w, r, session.SelectFFASize(req.Size))
		return
	}
	h.dispatch(w, r, session.SelectTeamSize(req.Side, req.Size))
}

// Submit records the match
func (h *APIHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, session.Submit())
}

// PostEvent accepts any event in its JSON form
func (h *APIHandlers) PostEvent(w http.ResponseWriter, r *http.Request) {
	var ev session.Event
	if !decode(w, r, &ev) {
		return
	}
	kind, err := session.ParseEventKind(string(ev.Kind))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	ev.Kind = kind
	h.dispatch(w, r, ev)
}

func (h *APIHandlers) dispatch(w http.ResponseWriter, r *http.Request, ev session.Event) {
	id := chi.URLParam(r, "id")
	user := auth.GetUser(r)

	out, err := h.sessions.HandleEvent(r.Context(), id, user.ID, ev)
	if err != nil {
		logger.Debug("Session event failed", "session_id", id, "event", string(ev.Kind), "error", err)
		writeError(w, err, out)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ListMatches returns recently recorded matches
func (h *APIHandlers) ListMatches(w http.ResponseWriter, r *http.Request) {
	if h.matches == nil {
		writeErrorCode(w, http.StatusNotImplemented, "UNSUPPORTED", "the configured store cannot list matches", nil)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	matches, err := h.matches.ListMatches(r.Context(), limit)
	if err != nil {
		logger.Error("Failed to list matches", "error", err)
		writeErrorCode(w, http.StatusBadGateway, "STORE", "failed to list matches", nil)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// PlayerStats returns appearance and win counts from the analytics mirror
func (h *APIHandlers) PlayerStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeErrorCode(w, http.StatusNotImplemented, "UNSUPPORTED", "player stats are not configured", nil)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	stats, err := h.stats.PlayerStats(r.Context())
	if err != nil {
		logger.Error("Failed to load player stats", "error", err)
		writeErrorCode(w, http.StatusBadGateway, "ANALYTICS", "failed to load player stats", nil)
		return
	}
	if len(stats) > limit {
		stats = stats[:limit]
	}
	writeJSON(w, http.StatusOK, stats)
}

// EventsSSE streams bus events. ?replay=N first sends up to N recent events
// when the bus keeps history.
func (h *APIHandlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventChan := h.bus.Subscribe()
	defer h.bus.Unsubscribe(eventChan)

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	flusher.Flush()

	if n, err := strconv.Atoi(r.URL.Query().Get("replay")); err == nil && n > 0 {
		h.bus.Replay(eventChan, n)
	}

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Warn("Failed to encode event", "type", event.Type, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected")
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxListLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", maxListLimit)
	}
	return n, nil
}

// decode reads a JSON body, writing a 400 on failure
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		logger.Warn("Failed to decode request", "path", r.URL.Path, "error", err)
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return false
	}
	return true
}

// decodeOptional is decode for requests whose body may be empty
func decodeOptional(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
