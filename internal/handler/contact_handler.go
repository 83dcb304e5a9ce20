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

// ContactHandler handles HTTP requests for contact-form submissions.
type ContactHandler struct {
	contactService *service.ContactService
	logger         *zap.Logger
}

func NewContactHandler(contactService *service.ContactService, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{
		contactService: contactService,
		logger:         logger,
	}
}

// RegisterRoutes registers contact routes. The admin group is intended to
// sit behind the operator gateway's authentication.
func (h *ContactHandler) RegisterRoutes(router chi.Router) {
	router.Route("/contact", func(r chi.Router) {
		r.Post("/", h.SubmitContact)

		r.Group(func(r chi.Router) {
			r.Get("/search", h.SearchSubmissions)
			r.Get("/{submissionDate}", h.ListSubmissions)
			r.Get("/{submissionDate}/{submissionID}", h.GetSubmission)
			r.Post("/{submissionDate}/{submissionID}/respond", h.MarkResponded)
		})
	})
}

// SubmitContact handles a contact-form post
func (h *ContactHandler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req service.ContactSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	submission, err := h.contactService.SubmitContact(ctx, &req)
	if err != nil {
		statusCode := h.getStatusCode(err)
		respondWithError(w, statusCode, err, "Failed to submit contact form")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(map[string]string{
		"id":              submission.ID,
		"submission_date": submission.SubmissionDate,
	}, "Submission received"))

	h.logger.Info("Contact submission via HTTP",
		util.String("id", submission.ID),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "SubmitContact"),
	)
}

// GetSubmission retrieves a single submission
func (h *ContactHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	submissionDate := chi.URLParam(r, "submissionDate")
	submissionID := chi.URLParam(r, "submissionID")

	submission, err := h.contactService.GetSubmission(ctx, submissionDate, submissionID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, err, "Submission not found")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(submission, "Submission retrieved"))
}

// ListSubmissions pages through one day's submissions
func (h *ContactHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	submissionDate := chi.URLParam(r, "submissionDate")
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

	submissions, nextPageState, err := h.contactService.ListSubmissions(ctx, submissionDate, pageState, pageSize)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to list submissions")
		return
	}

	response := successResponse(submissions, "Submissions retrieved")
	if len(nextPageState) > 0 {
		response.Meta = &Meta{
			PageToken: base64.URLEncoding.EncodeToString(nextPageState),
			PageSize:  pageSize,
		}
	}

	respondWithJSON(w, http.StatusOK, response)
}

// SearchSubmissions runs a free-text search over the submission index
func (h *ContactHandler) SearchSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	term := r.URL.Query().Get("q")
	if term == "" {
		respondWithError(w, http.StatusBadRequest, nil, "Query parameter q is required")
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	docs, err := h.contactService.SearchSubmissions(ctx, term, size)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Search failed")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(docs, "Search results"))
}

// MarkResponded flags a submission as handled
func (h *ContactHandler) MarkResponded(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	submissionDate := chi.URLParam(r, "submissionDate")
	submissionID := chi.URLParam(r, "submissionID")

	if err := h.contactService.MarkResponded(ctx, submissionDate, submissionID); err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to update submission")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Submission marked responded"))
}

func (h *ContactHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidSubmission),
		errors.Is(err, service.ErrSubmissionTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
