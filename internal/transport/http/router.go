package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
	"github.com/w3f/polkadot-registrar-bot/internal/intake"
	"github.com/w3f/polkadot-registrar-bot/internal/platform/metrics"
	"github.com/w3f/polkadot-registrar-bot/internal/platform/middleware"
)

// IdentityReader is the read slice of the identity manager the public
// endpoints need.
type IdentityReader interface {
	LookupFullState(addr domain.NetworkAddress) (domain.IdentityState, bool)
	IsFullyVerified(addr domain.NetworkAddress) (bool, error)
}

// IdentityAdmin covers the privileged operations behind the admin routes.
type IdentityAdmin interface {
	RemoveIdentity(ctx context.Context, addr domain.NetworkAddress) (bool, error)
}

// ClaimIntake accepts new on-chain identity claims from the watcher.
type ClaimIntake interface {
	HandleClaim(ctx context.Context, claim intake.Claim) (domain.IdentityState, error)
}

// RemarkSink accepts on-chain remarks observed by the watcher.
type RemarkSink interface {
	HandleRemark(ctx context.Context, remark domain.RemarkFound) error
}

// HealthChecker reports backing-store health for /healthz.
type HealthChecker func(ctx context.Context) error

// Handler is the thin HTTP layer. It delegates to domain services without
// embedding business logic so transport concerns remain isolated.
type Handler struct {
	logger  *slog.Logger
	reader  IdentityReader
	admin   IdentityAdmin
	claims  ClaimIntake
	remarks RemarkSink
	health  []HealthChecker
}

func NewHandler(
	reader IdentityReader,
	admin IdentityAdmin,
	claims ClaimIntake,
	remarks RemarkSink,
	logger *slog.Logger,
	health ...HealthChecker,
) *Handler {
	return &Handler{
		logger:  logger,
		reader:  reader,
		admin:   admin,
		claims:  claims,
		remarks: remarks,
		health:  health,
	}
}

// NewRouter wires all endpoints. Admin routes sit behind the JWT middleware.
func NewRouter(h *Handler, jwtSigningKey []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/identity/{network}/{address}", func(r chi.Router) {
		r.Get("/", h.handleLookup)
		r.Get("/verified", h.handleVerified)
	})

	r.Post("/watcher/claim", h.handleClaim)
	r.Post("/watcher/remark", h.handleRemark)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(jwtSigningKey, h.logger))
		r.Post("/identity/{network}/{address}/remove", h.handleRemove)
	})

	return r
}

// pathAddress decodes the {network}/{address} pair of a route. A response is
// written and false returned when the network is unknown.
func (h *Handler) pathAddress(w http.ResponseWriter, r *http.Request) (domain.NetworkAddress, bool) {
	network := domain.Network(chi.URLParam(r, "network"))
	if !network.Known() {
		writeError(w, http.StatusBadRequest, "unknown_network", "network must be polkadot or kusama")
		return domain.NetworkAddress{}, false
	}
	return domain.NetworkAddress{Network: network, Address: chi.URLParam(r, "address")}, true
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	state, found := h.reader.LookupFullState(addr)
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "no identity registered for this address")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleVerified(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	verified, err := h.reader.IsFullyVerified(addr)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "no identity registered for this address")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": verified})
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var claim intake.Claim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		h.logger.WarnContext(ctx, "invalid claim payload",
			"request_id", requestID,
			"error", err.Error(),
		)
		writeError(w, http.StatusBadRequest, "bad_request", "invalid claim payload")
		return
	}

	state, err := h.claims.HandleClaim(ctx, claim)
	if err != nil {
		h.logger.ErrorContext(ctx, "claim intake failed",
			"request_id", requestID,
			"address", claim.Address.String(),
			"error", err.Error(),
		)
		writeError(w, http.StatusConflict, "claim_rejected", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (h *Handler) handleRemark(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var remark domain.RemarkFound
	if err := json.NewDecoder(r.Body).Decode(&remark); err != nil {
		h.logger.WarnContext(ctx, "invalid remark payload",
			"request_id", requestID,
			"error", err.Error(),
		)
		writeError(w, http.StatusBadRequest, "bad_request", "invalid remark payload")
		return
	}

	if err := h.remarks.HandleRemark(ctx, remark); err != nil {
		h.logger.ErrorContext(ctx, "remark intake failed",
			"request_id", requestID,
			"address", remark.Address.String(),
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, "internal", "failed to record remark")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	removed, err := h.admin.RemoveIdentity(ctx, addr)
	if err != nil {
		h.logger.ErrorContext(ctx, "removing identity",
			"request_id", middleware.GetRequestID(ctx),
			"address", addr.String(),
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, "internal", "failed to remove identity")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "not_found", "no identity registered for this address")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	for _, check := range h.health {
		if err := check(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unhealthy", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError keeps the JSON error envelope consistent across handlers.
func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}
