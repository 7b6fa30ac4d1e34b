package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"device-activation/internal/domain"
	"device-activation/internal/domain/model"
	"device-activation/internal/infra/logging"
	"device-activation/internal/infra/metrics"
	red "device-activation/internal/infra/redis"
	"device-activation/internal/usecase"
)

// RateLimiter is what the verify handler needs from the redis limiter.
// nil disables rate limiting (unit tests).
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorResponse(message string) map[string]interface{} {
	return map[string]interface{}{"success": false, "message": message}
}

// codeView is the wire shape of an activation code in admin responses.
type codeView struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	IsUsed    bool       `json:"is_used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	UsedBy    *string    `json:"used_by,omitempty"`
	ValidDays *int       `json:"valid_days,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CardType  *string    `json:"card_type,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toCodeViews(codes []*model.ActivationCode) []codeView {
	out := make([]codeView, 0, len(codes))
	for _, c := range codes {
		out = append(out, codeView{
			ID:        c.ID,
			Code:      c.Code,
			IsUsed:    c.IsUsed,
			UsedAt:    c.UsedAt,
			UsedBy:    c.UsedBy,
			ValidDays: c.ValidDays,
			ExpiresAt: c.ExpiresAt,
			CardType:  c.CardType,
			CreatedAt: c.CreatedAt,
		})
	}
	return out
}

type verifyRequest struct {
	Code      string `json:"code"`
	MachineID string `json:"machine_id"`
}

type verifyResponse struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// verifyHandler serves the single unauthenticated endpoint: devices present
// a code and their machine identifier and get back an accept/reject verdict.
// Attempts are rate limited per machine identifier to slow down guessing.
func verifyHandler(activationUC usecase.ActivationUseCase, limiter RateLimiter, limit int, window time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			metrics.IncVerification("invalid")
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
			return
		}
		if req.Code == "" || req.MachineID == "" {
			metrics.IncVerification("invalid")
			writeJSON(w, http.StatusBadRequest, errorResponse("code and machine_id are required"))
			return
		}
		ctx = logging.WithDeviceID(ctx, req.MachineID)

		if limiter != nil {
			ok, err := limiter.Allow(ctx, red.DeviceVerifyKey(req.MachineID), limit, window)
			if err == nil && !ok {
				metrics.IncVerification("rate_limited")
				writeJSON(w, http.StatusTooManyRequests, errorResponse("too many verification attempts"))
				return
			}
			// A limiter outage never blocks verification.
		}

		start := time.Now()
		res, err := activationUC.Verify(ctx, req.Code, req.MachineID)
		metrics.ObserveVerifyLatency(float64(time.Since(start).Milliseconds()))

		if err != nil {
			status, outcome, msg := classifyVerifyError(err)
			metrics.IncVerification(outcome)
			writeJSON(w, status, errorResponse(msg))
			return
		}

		msg := "activation code verified"
		outcome := "accepted"
		if res.Reconfirmed {
			msg = "activation code verified (repeat verification)"
			outcome = "reconfirmed"
		}
		metrics.IncVerification(outcome)
		writeJSON(w, http.StatusOK, verifyResponse{Success: true, Message: msg, ExpiresAt: res.ExpiresAt})
	}
}

func classifyVerifyError(err error) (status int, outcome, msg string) {
	var bound *domain.DeviceBoundError
	switch {
	case errors.Is(err, domain.ErrCodeNotFound):
		return http.StatusNotFound, "not_found", "activation code not found"
	case errors.Is(err, domain.ErrCodeExpired):
		return http.StatusBadRequest, "expired", "activation code expired"
	case errors.Is(err, domain.ErrCodeAlreadyUsed):
		return http.StatusBadRequest, "already_used", "activation code already used by another device"
	case errors.As(err, &bound):
		return http.StatusBadRequest, "device_bound",
			"this device is already bound to activation code " + bound.BoundCode + "; one device can only use one code"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid", err.Error()
	default:
		return http.StatusInternalServerError, "error", "internal server error"
	}
}

type generateRequest struct {
	Amount    int     `json:"amount"`
	ValidDays *int    `json:"valid_days,omitempty"`
	CardType  *string `json:"card_type,omitempty"`
}

func codesGenerateHandler(activationUC usecase.ActivationUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
			return
		}

		codes, err := activationUC.Generate(ctx, req.Amount, req.ValidDays, req.CardType)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse("failed to generate codes"))
			return
		}
		metrics.AddCodesGenerated(len(codes))

		writeJSON(w, http.StatusCreated, struct {
			Success bool       `json:"success"`
			Message string     `json:"message"`
			Codes   []codeView `json:"codes"`
		}{true, "activation codes generated", toCodeViews(codes)})
	}
}

func codesListHandler(activationUC usecase.ActivationUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		codes, err := activationUC.List(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse("failed to list codes"))
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Success bool       `json:"success"`
			Codes   []codeView `json:"codes"`
		}{true, toCodeViews(codes)})
	}
}

func codesStatsHandler(activationUC usecase.ActivationUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := activationUC.Stats(r.Context(), time.Now())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse("failed to compute stats"))
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Success bool             `json:"success"`
			Stats   *model.CodeStats `json:"stats"`
		}{true, stats})
	}
}

// codesCleanupHandler runs the reconciliation sweep (POST) or previews the
// bindings it would release (GET).
func codesCleanupHandler(activationUC usecase.ActivationUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now()

		switch r.Method {
		case http.MethodGet:
			expired, err := activationUC.ExpiredBindings(ctx, now)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, errorResponse("failed to inspect expired bindings"))
				return
			}
			writeJSON(w, http.StatusOK, struct {
				Success bool       `json:"success"`
				Count   int        `json:"count"`
				Expired []codeView `json:"expired_codes"`
			}{true, len(expired), toCodeViews(expired)})
		case http.MethodPost:
			released, err := activationUC.Sweep(ctx, now)
			if err != nil {
				metrics.IncSweepRun("error")
				writeJSON(w, http.StatusInternalServerError, errorResponse("cleanup failed"))
				return
			}
			metrics.IncSweepRun("ok")
			metrics.AddSweepReleased(released)
			writeJSON(w, http.StatusOK, struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
				Cleaned int    `json:"cleaned"`
			}{true, "expired bindings released", released})
		default:
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		}
	}
}

type deleteRequest struct {
	ID string `json:"id"`
}

func codesDeleteHandler(activationUC usecase.ActivationUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse("code id is required"))
			return
		}

		if err := activationUC.Delete(r.Context(), req.ID); err != nil {
			if errors.Is(err, domain.ErrCodeNotFound) {
				writeJSON(w, http.StatusNotFound, errorResponse("activation code not found"))
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse("failed to delete code"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "activation code deleted"})
	}
}
