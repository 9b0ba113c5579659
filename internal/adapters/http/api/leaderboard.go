package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/reviewrank/internal/domain/leaderboard"
	"github.com/okian/reviewrank/internal/domain/model"
)

const defaultLeaderboardLimit = 10

// LeaderboardDependencies defines the interface for leaderboard operations
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, scoreSetSlug string, limit int) ([]Entry, error)
	ScoreEntry(e model.PlatformEntry) model.LeaderboardEntry
}

// LeaderboardHandler handles leaderboard requests
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /leaderboard?score_set=SLUG&limit=N requests
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n := defaultLeaderboardLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrLimitExceeded))
		return
	}
	entries, err := h.deps.Leaderboard(r.Context(), r.URL.Query().Get("score_set"), n)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleScoreEntries handles POST /leaderboard/score. A single platform entry
// returns its leaderboard record; an array returns the records ranked.
func (h *LeaderboardHandler) HandleScoreEntries(w http.ResponseWriter, r *http.Request) {
	const op = "api.score_entries"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	body := bufio.NewReader(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	head, _ := body.Peek(64)
	dec := json.NewDecoder(body)

	if trimmed := bytes.TrimLeft(head, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []model.PlatformEntry
		if err := dec.Decode(&batch); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		built := make([]model.LeaderboardEntry, 0, len(batch))
		for _, e := range batch {
			built = append(built, h.deps.ScoreEntry(e))
		}
		writeJSON(w, http.StatusOK, leaderboard.Rank(built))
		return
	}

	var e model.PlatformEntry
	if err := dec.Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if e.Slug == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissing("slug")))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ScoreEntry(e))
}

func errMissing(field string) error { return fmt.Errorf("missing %s", field) }
