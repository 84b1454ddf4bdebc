package http

import (
	"context"
	"net/http"
	"time"

	"github.com/linkpulse/linkpulse/internal/config"
	"github.com/linkpulse/linkpulse/internal/constants"
	"github.com/linkpulse/linkpulse/internal/infrastructure/logger"
	"github.com/linkpulse/linkpulse/internal/processing/analytics"
	"github.com/linkpulse/linkpulse/internal/processing/links"
	"github.com/linkpulse/linkpulse/pkg/httputils"
	"go.uber.org/zap"
)

// ClickEnqueuer hands a click to the durable pipeline instead of writing it
// inline. Satisfied by the Mongo click outbox.
type ClickEnqueuer interface {
	EnqueueClick(ctx context.Context, token string, visitor analytics.RequestContext, occurredAt time.Time) error
}

// RedirectHandler serves GET /{token}. The redirect is sent first; click
// recording never delays or fails the visitor's redirect.
type RedirectHandler struct {
	cfg      *config.Config
	svc      *links.Service
	recorder *analytics.Recorder
	outbox   ClickEnqueuer

	asyncClick   bool
	clickTimeout time.Duration
	now          func() time.Time
}

type RedirectHandlerOptions struct {
	// AsyncClick records the click in a detached goroutine after the
	// response is written. Tests set it to false for determinism.
	AsyncClick   bool
	ClickTimeout time.Duration

	// Outbox, when set, replaces the inline write with an enqueue for the
	// Kafka pipeline.
	Outbox ClickEnqueuer
}

func NewRedirectHandler(cfg *config.Config, svc *links.Service, recorder *analytics.Recorder, opts RedirectHandlerOptions) *RedirectHandler {
	if opts.ClickTimeout <= 0 {
		opts.ClickTimeout = 2 * time.Second
	}

	return &RedirectHandler{
		cfg:          cfg,
		svc:          svc,
		recorder:     recorder,
		outbox:       opts.Outbox,
		asyncClick:   opts.AsyncClick,
		clickTimeout: opts.ClickTimeout,
		now:          time.Now,
	}
}

func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	link, err := h.svc.Resolve(r.Context(), token)
	if err != nil {
		switch err {
		case links.ErrNotFound:
			http.NotFound(w, r)
		case links.ErrExpired:
			httputils.WriteAPIError(w, r, constants.ErrLinkExpired)
		default:
			logger.Error("failed to resolve token", zap.Error(err), zap.String("token", token))
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	// Captured before the response; the request may be recycled afterwards.
	visitor := analytics.RequestContext{
		UserAgent: r.UserAgent(),
		IP:        httputils.ClientIP(r),
	}
	occurredAt := h.now().UTC()

	http.Redirect(w, r, link.Destination, h.cfg.Shortener.RedirectStatus)

	if h.outbox != nil {
		// Detached from the request so a slow outbox insert never holds the
		// redirect response. WithoutCancel keeps the trace context the
		// outbox stores alongside the event.
		ctx := context.WithoutCancel(r.Context())
		go func() {
			ctx, cancel := context.WithTimeout(ctx, h.clickTimeout)
			defer cancel()
			if err := h.outbox.EnqueueClick(ctx, link.Token, visitor, occurredAt); err != nil {
				logger.Warn("failed to enqueue click", zap.Error(err), zap.String("token", link.Token))
			}
		}()
		return
	}

	if h.asyncClick {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), h.clickTimeout)
			defer cancel()
			if err := h.recorder.RecordAt(ctx, link, visitor, occurredAt); err != nil {
				logger.Warn("failed to record click", zap.Error(err), zap.String("token", link.Token))
			}
		}()
		return
	}

	if err := h.recorder.RecordAt(r.Context(), link, visitor, occurredAt); err != nil {
		logger.Warn("failed to record click", zap.Error(err), zap.String("token", link.Token))
	}
}
