package api

import (
	"context"
	"net/http"
	"strconv"

	service "github.com/okian/reviewrank/internal/app"
)

// SyncDependencies defines the interface for platform sync requests.
type SyncDependencies interface {
	RequestSync(ctx context.Context, scoreSetSlug string, full bool) (service.SyncResult, error)
}

// SyncHandler handles sync requests.
type SyncHandler struct {
	deps SyncDependencies
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps SyncDependencies) *SyncHandler {
	return &SyncHandler{deps: deps}
}

// HandlePostSync handles POST /sync?score_set=SLUG&full=BOOL requests.
// Accepted requests answer 202, a sync already pending for the score set
// answers 200 and a full queue answers 429.
func (h *SyncHandler) HandlePostSync(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_sync"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	slug := q.Get("score_set")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissing("score_set")))
		return
	}
	full := true
	if v := q.Get("full"); v != "" {
		var err error
		if full, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
	}

	res, err := h.deps.RequestSync(r.Context(), slug, full)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if res.Status == service.SyncDuplicate {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}
