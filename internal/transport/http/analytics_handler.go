package http

import (
	"net/http"
	"time"

	"github.com/linkpulse/linkpulse/internal/constants"
	"github.com/linkpulse/linkpulse/internal/infrastructure/logger"
	"github.com/linkpulse/linkpulse/internal/processing/analytics"
	"github.com/linkpulse/linkpulse/internal/transport/http/middleware"
	"github.com/linkpulse/linkpulse/pkg/httputils"
	"go.uber.org/zap"
)

type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
}

func NewAnalyticsHandler(aggregator *analytics.Aggregator) *AnalyticsHandler {
	return &AnalyticsHandler{aggregator: aggregator}
}

type visitResponse struct {
	Token       string    `json:"token"`
	OriginalURL string    `json:"originalUrl"`
	Date        string    `json:"date"`
	Timestamp   time.Time `json:"timestamp"`
	IP          string    `json:"ip,omitempty"`
	Device      string    `json:"device"`
	OS          string    `json:"os"`
	Browser     string    `json:"browser"`
}

// Clicks returns the owner's rollup: overall total, per-date series, and
// device breakdown.
func (h *AnalyticsHandler) Clicks(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		httputils.WriteAPIError(w, r, constants.ErrUnauthorized)
		return
	}

	summary, err := h.aggregator.ClickSummary(r.Context(), ownerID)
	if err != nil {
		logger.Error("failed to build click summary", zap.Error(err), zap.String("owner_id", ownerID))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessClicksFound, summary)
}

// Visits returns the owner's raw visit log across all links.
func (h *AnalyticsHandler) Visits(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		httputils.WriteAPIError(w, r, constants.ErrUnauthorized)
		return
	}

	visits, err := h.aggregator.VisitLog(r.Context(), ownerID)
	if err != nil {
		logger.Error("failed to fetch visit log", zap.Error(err), zap.String("owner_id", ownerID))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	resp := make([]visitResponse, 0, len(visits))
	for _, v := range visits {
		resp = append(resp, visitResponse{
			Token:       v.Token,
			OriginalURL: v.Destination,
			Date:        v.Date,
			Timestamp:   v.Timestamp,
			IP:          v.IP,
			Device:      string(v.Device),
			OS:          v.OS,
			Browser:     v.Browser,
		})
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessVisitsFound, resp)
}
