package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"verification-service/internal/service"
	"verification-service/internal/util"
)

// ApplicationHandler handles HTTP requests for trade-finance applications.
type ApplicationHandler struct {
	applicationService *service.ApplicationService
	logger             *zap.Logger
}

func NewApplicationHandler(applicationService *service.ApplicationService, logger *zap.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		applicationService: applicationService,
		logger:             logger,
	}
}

// RegisterRoutes registers application routes. Review routes belong
// behind operator authentication.
func (h *ApplicationHandler) RegisterRoutes(router chi.Router) {
	router.Route("/applications", func(r chi.Router) {
		r.Post("/", h.SubmitApplication)

		r.Group(func(r chi.Router) {
			r.Get("/{applicationID}", h.GetApplication)
			r.Get("/status/{status}", h.ListApplications)
			r.Patch("/{applicationID}/status", h.UpdateStatus)
		})
	})
}

// SubmitApplication handles an application-form post
func (h *ApplicationHandler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req service.ApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	app, err := h.applicationService.SubmitApplication(ctx, &req)
	if err != nil {
		statusCode := h.getStatusCode(err)
		respondWithError(w, statusCode, err, "Failed to submit application")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(map[string]string{
		"id":     app.ID,
		"status": app.Status,
	}, "Application received"))

	h.logger.Info("Application submitted via HTTP",
		util.String("id", app.ID),
		util.String("instrument", app.Instrument),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "SubmitApplication"),
	)
}

// GetApplication retrieves one application
func (h *ApplicationHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	applicationID := chi.URLParam(r, "applicationID")

	app, err := h.applicationService.GetApplication(ctx, applicationID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, err, "Application not found")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(app, "Application retrieved"))
}

// ListApplications pages through one status partition
func (h *ApplicationHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := chi.URLParam(r, "status")
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	var pageState []byte
	if token := r.URL.Query().Get("page_token"); token != "" {
		decoded, err := base64.URLEncoding.DecodeString(token)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err, "Invalid page token")
			return
		}
		pageState = decoded
	}

	apps, nextPageState, err := h.applicationService.ListApplications(ctx, status, pageState, pageSize)
	if err != nil {
		statusCode := h.getStatusCode(err)
		respondWithError(w, statusCode, err, "Failed to list applications")
		return
	}

	response := successResponse(apps, "Applications retrieved")
	if len(nextPageState) > 0 {
		response.Meta = &Meta{
			PageToken: base64.URLEncoding.EncodeToString(nextPageState),
			PageSize:  pageSize,
		}
	}

	respondWithJSON(w, http.StatusOK, response)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus advances an application through the review workflow
func (h *ApplicationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	applicationID := chi.URLParam(r, "applicationID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.applicationService.UpdateStatus(ctx, applicationID, req.Status); err != nil {
		statusCode := h.getStatusCode(err)
		respondWithError(w, statusCode, err, "Failed to update application status")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Status updated"))
}

func (h *ApplicationHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidApplication),
		errors.Is(err, service.ErrInvalidInstrument):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
