package api

import (
	"bufio"
	"context"
	"net/http"

	"github.com/okian/reviewrank/internal/adapters/intake"
	service "github.com/okian/reviewrank/internal/app"
)

// maxUploadBytes bounds POST /scores bodies.
const maxUploadBytes = 32 << 20

// ScoresDependencies defines the score upload operations.
type ScoresDependencies interface {
	IngestScores(ctx context.Context, scoreSet string, records []map[string]any) (service.IngestResult, error)
	ScoreSets(ctx context.Context) ([]string, error)
}

// ScoresHandler handles score export uploads.
type ScoresHandler struct {
	deps ScoresDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoresDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandleScores handles GET /scores (list score sets) and
// POST /scores?score_set=NAME (upload a CSV or JSON export).
func (h *ScoresHandler) HandleScores(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleUpload(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *ScoresHandler) handleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_score_sets"
	sets, err := h.deps.ScoreSets(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if sets == nil {
		sets = []string{}
	}
	writeJSON(w, http.StatusOK, sets)
}

func (h *ScoresHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_scores"
	scoreSet := r.URL.Query().Get("score_set")
	if scoreSet == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissing("score_set")))
		return
	}

	body := bufio.NewReader(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	head, _ := body.Peek(512)
	format := intake.DetectFormat(r.Header.Get("Content-Type"), "", head)

	records, err := intake.Read(body, format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.IngestScores(r.Context(), scoreSet, records)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
