package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"tripsmith/internal/app"
	"tripsmith/internal/domain"
)

type Handlers struct {
	Repo    domain.TripRepository
	Intake  *app.IntakeService
	Planner *app.PlannerService
	Edits   *app.EditService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/planner/chat", h.plannerChat)
	s.mux.Post("/v1/trips/{id}/generate", h.generateTrip)
	s.mux.Post("/v1/trips/{id}/edits", h.editTrip)
	s.mux.Get("/v1/trips/{id}", h.getTrip)
	s.mux.Get("/v1/trips/{id}/validation", h.getValidation)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func (h *Handlers) plannerChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		UserID    string `json:"user_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "message is required")
		return
	}
	out, err := h.Intake.Chat(r.Context(), req.SessionID, req.UserID, req.Message)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Chat failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// generateTrip starts one generation run in the background; the claim inside
// the planner rejects a second concurrent trigger for the same draft.
func (h *Handlers) generateTrip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trip, err := h.Repo.GetTrip(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "trip not found")
		return
	}
	if trip.Status != domain.StatusDraft {
		writeProblem(w, http.StatusConflict, "Conflict", "trip is not in draft")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := h.Planner.Generate(ctx, id); err != nil {
			log.Error().Err(err).Str("trip", id).Msg("generation failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"trip_id": id, "status": string(domain.StatusGenerating)})
}

func (h *Handlers) editTrip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "message is required")
		return
	}
	out, err := h.Edits.Apply(r.Context(), id, req.Message)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "trip not found")
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Edit failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getTrip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trip, err := h.Repo.GetTripFull(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "trip not found")
		return
	}

	etag, body := calcETagAndBody(tripView(trip))
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getTrip body")
	}
}

func (h *Handlers) getValidation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trip, err := h.Repo.GetTripFull(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, app.Validate(trip))
}
