package http

import (
	"encoding/json"
	"strings"

	nethttp "net/http"

	"github.com/dosera-app/dosera/internal/quiz"
)

// POST /api/question-types
func CreateQuestionTypeHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var qt quiz.QuestionType
		if err := json.NewDecoder(r.Body).Decode(&qt); err != nil || strings.TrimSpace(qt.Name) == "" {
			nethttp.Error(w, "name required", nethttp.StatusBadRequest)
			return
		}
		id, err := store.PutQuestionType(r.Context(), qt)
		if err != nil {
			storeError(w, err)
			return
		}
		qt.ID = id
		writeJSON(w, nethttp.StatusCreated, qt)
	}
}

// GET /api/question-types
func ListQuestionTypesHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		qts, err := store.ListQuestionTypes(r.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		if qts == nil {
			qts = []quiz.QuestionType{}
		}
		writeJSON(w, nethttp.StatusOK, qts)
	}
}

// DELETE /api/question-types/{id}
func DeleteQuestionTypeHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			nethttp.Error(w, "bad id", nethttp.StatusBadRequest)
			return
		}
		if err := store.DeleteQuestionType(r.Context(), id); err != nil {
			storeError(w, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}
