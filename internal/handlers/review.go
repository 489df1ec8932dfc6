package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kyucards-backend/internal/logger"
	"kyucards-backend/internal/middleware"
	"kyucards-backend/internal/study"
)

type reviewService interface {
	Start(ctx context.Context, userID uuid.UUID) (study.View, error)
	View(userID uuid.UUID, id string) (study.View, error)
	Reveal(userID uuid.UUID, id string) (study.View, error)
	Rate(ctx context.Context, userID uuid.UUID, id string, score int) (study.View, error)
	Next(userID uuid.UUID, id string) (study.View, error)
	Previous(userID uuid.UUID, id string) (study.View, error)
	Close(userID uuid.UUID, id string) (study.View, error)
}

type ReviewHandler struct {
	reviews reviewService
	log     *logger.Logger
}

func NewReviewHandler(reviews reviewService, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, log: log}
}

type rateRequest struct {
	Score *int `json:"score"`
}

func (h *ReviewHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	v, err := h.reviews.Start(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	h.respond(w, r)(h.reviews.View(userID, chi.URLParam(r, "id")))
}

func (h *ReviewHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	h.respond(w, r)(h.reviews.Reveal(userID, chi.URLParam(r, "id")))
}

func (h *ReviewHandler) Rate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Score == nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"score": "Score is required"}, r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.respond(w, r)(h.reviews.Rate(r.Context(), userID, chi.URLParam(r, "id"), *req.Score))
}

func (h *ReviewHandler) Next(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	h.respond(w, r)(h.reviews.Next(userID, chi.URLParam(r, "id")))
}

func (h *ReviewHandler) Previous(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	h.respond(w, r)(h.reviews.Previous(userID, chi.URLParam(r, "id")))
}

func (h *ReviewHandler) Close(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	h.respond(w, r)(h.reviews.Close(userID, chi.URLParam(r, "id")))
}

func (h *ReviewHandler) respond(w http.ResponseWriter, r *http.Request) func(study.View, error) {
	return func(v study.View, err error) {
		if err != nil {
			handleServiceError(w, r, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}
