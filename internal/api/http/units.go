package http

import (
	"encoding/json"
	"strings"

	nethttp "net/http"

	"github.com/dosera-app/dosera/internal/quiz"
)

func validateUnit(u quiz.AnswerUnit) string {
	switch {
	case strings.TrimSpace(u.AsciiName) == "":
		return "ascii_name required"
	case u.Precision != nil && (*u.Precision < 0 || *u.Precision > 10):
		return "precision out of range"
	}
	return ""
}

// POST /api/units
func CreateUnitHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var u quiz.AnswerUnit
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		if msg := validateUnit(u); msg != "" {
			nethttp.Error(w, msg, nethttp.StatusBadRequest)
			return
		}
		id, err := store.PutUnit(r.Context(), u)
		if err != nil {
			storeError(w, err)
			return
		}
		u.ID = id
		writeJSON(w, nethttp.StatusCreated, u)
	}
}

// GET /api/units
func ListUnitsHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		units, err := store.ListUnits(r.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		if units == nil {
			units = []quiz.AnswerUnit{}
		}
		writeJSON(w, nethttp.StatusOK, units)
	}
}

// PUT /api/units/{id}
func UpdateUnitHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			nethttp.Error(w, "bad id", nethttp.StatusBadRequest)
			return
		}
		var u quiz.AnswerUnit
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		u.ID = id
		if msg := validateUnit(u); msg != "" {
			nethttp.Error(w, msg, nethttp.StatusBadRequest)
			return
		}
		if err := store.UpdateUnit(r.Context(), u); err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, u)
	}
}

// DELETE /api/units/{id}
func DeleteUnitHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			nethttp.Error(w, "bad id", nethttp.StatusBadRequest)
			return
		}
		if err := store.DeleteUnit(r.Context(), id); err != nil {
			storeError(w, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}
