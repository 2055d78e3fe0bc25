package http

import (
	"encoding/json"
	"strings"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dosera-app/dosera/internal/quiz"
)

const maxFeedbackLen = 4000

// POST /api/feedback  (public)
func AddFeedbackHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Text string `json:"feedback_text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		req.Text = strings.TrimSpace(req.Text)
		if req.Text == "" || len(req.Text) > maxFeedbackLen {
			nethttp.Error(w, "feedback_text required", nethttp.StatusBadRequest)
			return
		}
		fb, err := store.AddFeedback(r.Context(), req.Text)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, fb)
	}
}

// GET /api/feedback  (admin)
func ListFeedbackHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		list, err := store.ListFeedback(r.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		if list == nil {
			list = []quiz.Feedback{}
		}
		writeJSON(w, nethttp.StatusOK, list)
	}
}

// DELETE /api/feedback/{id}  (admin)
func DeleteFeedbackHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			nethttp.Error(w, "bad id", nethttp.StatusBadRequest)
			return
		}
		if err := store.DeleteFeedback(r.Context(), id); err != nil {
			storeError(w, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}
