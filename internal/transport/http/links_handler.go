package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/linkpulse/linkpulse/internal/config"
	"github.com/linkpulse/linkpulse/internal/constants"
	"github.com/linkpulse/linkpulse/internal/infrastructure/logger"
	appvalidation "github.com/linkpulse/linkpulse/internal/infrastructure/validation"
	"github.com/linkpulse/linkpulse/internal/processing/analytics"
	"github.com/linkpulse/linkpulse/internal/processing/links"
	"github.com/linkpulse/linkpulse/internal/transport/http/middleware"
	"github.com/linkpulse/linkpulse/pkg/httputils"
	"go.uber.org/zap"
)

// NoExpirationLabel is the value rendered for links without an expiration.
const NoExpirationLabel = "No expiration"

type LinksHandler struct {
	cfg        *config.Config
	svc        *links.Service
	aggregator *analytics.Aggregator
}

func NewLinksHandler(cfg *config.Config, svc *links.Service, aggregator *analytics.Aggregator) *LinksHandler {
	return &LinksHandler{cfg: cfg, svc: svc, aggregator: aggregator}
}

type createLinkRequest struct {
	OriginalURL      string `json:"originalUrl" validate:"required,notblank,dest_url"`
	Remarks          string `json:"remarks" validate:"required,notblank"`
	ExpirationInDays *int   `json:"expirationInDays,omitempty" validate:"omitnil,gt=0"`
}

type updateLinkRequest struct {
	NewOriginalURL string `json:"newOriginalUrl" validate:"required,notblank,dest_url"`
}

type linkResponse struct {
	Token          string    `json:"token"`
	OriginalURL    string    `json:"originalUrl"`
	ShortenedURL   string    `json:"shortenedUrl"`
	Remarks        string    `json:"remarks"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpirationDate string    `json:"expirationDate"`
	TotalClicks    int64     `json:"totalClicks"`
}

func (h *LinksHandler) toResponse(link *links.Link, totalClicks int64) linkResponse {
	expiration := NoExpirationLabel
	if link.ExpiresAt != nil {
		expiration = link.ExpiresAt.UTC().Format(time.RFC3339)
	}

	return linkResponse{
		Token:          link.Token,
		OriginalURL:    link.Destination,
		ShortenedURL:   strings.TrimRight(h.cfg.Shortener.BaseURL, "/") + "/" + link.Token,
		Remarks:        link.Remark,
		CreatedAt:      link.CreatedAt,
		ExpirationDate: expiration,
		TotalClicks:    totalClicks,
	}
}

func (h *LinksHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		httputils.WriteAPIError(w, r, constants.ErrUnauthorized)
		return
	}

	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		apiErr := constants.ErrInvalidRequestBody
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			for _, e := range validationErrs {
				if e.Field() == "originalUrl" {
					apiErr = constants.ErrInvalidURL
					break
				}
				if e.Field() == "remarks" {
					apiErr = constants.ErrRemarkRequired
					break
				}
				if e.Field() == "expirationInDays" {
					apiErr = apiErr.WithMessage("expirationInDays must be greater than zero")
					break
				}
			}
		}
		httputils.WriteAPIError(w, r, apiErr)
		return
	}

	// The device the link was created from is recorded alongside it.
	c := analytics.Classify(r.UserAgent())

	link, err := h.svc.Create(r.Context(), links.CreateLinkInput{
		Destination:    req.OriginalURL,
		OwnerID:        ownerID,
		Remark:         req.Remarks,
		ExpirationDays: req.ExpirationInDays,
		Creation: links.CreationContext{
			IP:      httputils.ClientIP(r),
			Device:  string(c.Device),
			OS:      c.OS,
			Browser: c.Browser,
		},
	})
	if err != nil {
		switch err {
		case links.ErrInvalidURL:
			httputils.WriteAPIError(w, r, constants.ErrInvalidURL)
		case links.ErrRemarkRequired:
			httputils.WriteAPIError(w, r, constants.ErrRemarkRequired)
		default:
			logger.Error("failed to create link", zap.Error(err))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessLinkCreated, h.toResponse(link, 0))
}

func (h *LinksHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		httputils.WriteAPIError(w, r, constants.ErrUnauthorized)
		return
	}

	owned, err := h.svc.ListByOwner(r.Context(), ownerID)
	if err != nil {
		logger.Error("failed to list links", zap.Error(err), zap.String("owner_id", ownerID))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	tokens := make([]string, 0, len(owned))
	for _, link := range owned {
		tokens = append(tokens, link.Token)
	}

	totals, err := h.aggregator.TotalClicksByToken(r.Context(), tokens)
	if err != nil {
		logger.Error("failed to fetch click totals", zap.Error(err), zap.String("owner_id", ownerID))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	resp := make([]linkResponse, 0, len(owned))
	for _, link := range owned {
		resp = append(resp, h.toResponse(link, totals[link.Token]))
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessLinksFound, resp)
}

// ownedLink loads the link and verifies the caller owns it. A nil return
// means the response has already been written.
func (h *LinksHandler) ownedLink(w http.ResponseWriter, r *http.Request) *links.Link {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		httputils.WriteAPIError(w, r, constants.ErrUnauthorized)
		return nil
	}

	token := r.PathValue("token")
	link, err := h.svc.GetByToken(r.Context(), token)
	if err != nil {
		switch err {
		case links.ErrNotFound:
			httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
		default:
			logger.Error("failed to fetch link", zap.Error(err), zap.String("token", token))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return nil
	}

	if link.OwnerID != ownerID {
		httputils.WriteAPIError(w, r, constants.ErrForbidden)
		return nil
	}

	return link
}

func (h *LinksHandler) Update(w http.ResponseWriter, r *http.Request) {
	link := h.ownedLink(w, r)
	if link == nil {
		return
	}

	var req updateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidURL)
		return
	}

	updated, err := h.svc.UpdateDestination(r.Context(), link.Token, req.NewOriginalURL)
	if err != nil {
		switch err {
		case links.ErrInvalidURL:
			httputils.WriteAPIError(w, r, constants.ErrInvalidURL)
		case links.ErrNotFound:
			httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
		default:
			logger.Error("failed to update link", zap.Error(err), zap.String("token", link.Token))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}

	totals, err := h.aggregator.TotalClicksByToken(r.Context(), []string{updated.Token})
	if err != nil {
		logger.Error("failed to fetch click totals", zap.Error(err), zap.String("token", updated.Token))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessLinkUpdated, h.toResponse(updated, totals[updated.Token]))
}

func (h *LinksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	link := h.ownedLink(w, r)
	if link == nil {
		return
	}

	if err := h.svc.Delete(r.Context(), link.Token); err != nil {
		switch err {
		case links.ErrNotFound:
			httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
		default:
			logger.Error("failed to delete link", zap.Error(err), zap.String("token", link.Token))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessLinkDeleted, map[string]string{"token": link.Token})
}
