// Package http holds the REST handlers. Handlers only; routes are
// wired in router.go.
package http

import (
	"encoding/json"
	"errors"
	"strconv"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dosera-app/dosera/internal/quiz"
)

func writeJSON(w nethttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func idParam(r *nethttp.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// storeError maps store sentinels onto status codes. Anything else is
// a 500 with a generic body.
func storeError(w nethttp.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrNotFound):
		nethttp.Error(w, "not found", nethttp.StatusNotFound)
	case errors.Is(err, quiz.ErrDuplicate):
		nethttp.Error(w, "already exists", nethttp.StatusConflict)
	default:
		nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
	}
}
