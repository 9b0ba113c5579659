package api

import (
	"context"
	"net/http"

	service "github.com/okian/reviewrank/internal/app"
	"github.com/okian/reviewrank/internal/domain/model"
)

// AggregatesDependencies defines the aggregation read operations.
type AggregatesDependencies interface {
	Aggregates(ctx context.Context, scoreSet string) (service.AggregateReport, error)
	Summary(ctx context.Context, scoreSet string) (model.Summary, error)
}

// AggregatesHandler handles aggregation requests.
type AggregatesHandler struct {
	deps AggregatesDependencies
}

// NewAggregatesHandler creates a new aggregates handler.
func NewAggregatesHandler(deps AggregatesDependencies) *AggregatesHandler {
	return &AggregatesHandler{deps: deps}
}

// HandleGetAggregates handles GET /aggregates?score_set=NAME. Without a
// score set every stored row is aggregated.
func (h *AggregatesHandler) HandleGetAggregates(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_aggregates"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	report, err := h.deps.Aggregates(r.Context(), r.URL.Query().Get("score_set"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleGetSummary handles GET /summary?score_set=NAME.
func (h *AggregatesHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_summary"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	sum, err := h.deps.Summary(r.Context(), r.URL.Query().Get("score_set"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
