package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"verification-service/internal/service"
	"verification-service/internal/util"
)

// invalidCodeMessage is the single message returned for every failed
// verification. NotFound, Expired, AlreadyUsed and Mismatch are
// indistinguishable to the client.
const invalidCodeMessage = "invalid or expired code"

// VerificationHandler handles HTTP requests for the code request/verify
// flow.
type VerificationHandler struct {
	verificationService *service.VerificationService
	logger              *zap.Logger
}

func NewVerificationHandler(verificationService *service.VerificationService, logger *zap.Logger) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
		logger:              logger,
	}
}

// RegisterRoutes registers verification routes
func (h *VerificationHandler) RegisterRoutes(router chi.Router) {
	router.Route("/verification", func(r chi.Router) {
		r.Post("/request", h.RequestCode)
		r.Post("/verify", h.VerifyCode)
	})
}

type requestCodeRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type requestCodeResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

type rateLimitedResponse struct {
	RetryAfterMinutes int `json:"retry_after_minutes"`
}

// RequestCode handles code issuance requests
func (h *VerificationHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req requestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.verificationService.RequestCode(ctx, req.Email, req.Purpose)
	if err != nil {
		statusCode := h.getStatusCode(err)
		respondWithError(w, statusCode, err, "Failed to request verification code")
		return
	}

	switch result.Outcome {
	case service.OutcomeRateLimited:
		respondWithJSON(w, http.StatusTooManyRequests, Response{
			Success: false,
			Error:   "too many requests",
			Data:    rateLimitedResponse{RetryAfterMinutes: result.RetryAfterMinutes},
		})
	case service.OutcomeDeliveryFailed:
		// The issued code may still arrive late; the client is told to
		// retry without learning channel internals.
		respondWithError(w, http.StatusServiceUnavailable, nil, "Unable to send verification code, please try again")
	default:
		respondWithJSON(w, http.StatusOK, successResponse(
			requestCodeResponse{ExpiresAt: result.ExpiresAt},
			"Verification code sent",
		))
	}

	h.logger.Debug("Code request handled",
		util.String("outcome", string(result.Outcome)),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "RequestCode"),
	)
}

type verifyCodeRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	Code    string `json:"code"`
}

// VerifyCode handles code verification
func (h *VerificationHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.verificationService.VerifyCode(ctx, req.Email, req.Purpose, req.Code)
	if err != nil {
		statusCode := h.getStatusCode(err)
		respondWithError(w, statusCode, err, "Failed to verify code")
		return
	}

	if !result.Valid {
		respondWithError(w, http.StatusBadRequest, nil, invalidCodeMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Code verified"))

	h.logger.Debug("Code verified via HTTP",
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "VerifyCode"),
	)
}

// getStatusCode determines the appropriate HTTP status code for an error
func (h *VerificationHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRecipient),
		errors.Is(err, service.ErrInvalidPurpose),
		errors.Is(err, service.ErrCodeRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
