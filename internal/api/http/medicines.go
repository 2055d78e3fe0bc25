package http

import (
	"encoding/json"
	"strings"

	nethttp "net/http"

	"github.com/dosera-app/dosera/internal/engine"
	"github.com/dosera-app/dosera/internal/quiz"
)

// normalizeFassLink accepts a full FASS url or a bare path and returns
// a canonical https link, or "" when the input is empty.
func normalizeFassLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return "https://www.fass.se/" + strings.TrimPrefix(link, "/")
}

func validateMedicine(m quiz.Medicine) string {
	if strings.TrimSpace(m.Name) == "" {
		return "namn required"
	}
	if m.VariatingValues != "" {
		if _, err := engine.ParseSpecJSON(m.VariatingValues); err != nil {
			return "variating_values is not valid JSON"
		}
	}
	return ""
}

// POST /api/medicines
func CreateMedicineHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var m quiz.Medicine
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		if msg := validateMedicine(m); msg != "" {
			nethttp.Error(w, msg, nethttp.StatusBadRequest)
			return
		}
		m.FassLink = normalizeFassLink(m.FassLink)
		id, err := store.PutMedicine(r.Context(), m)
		if err != nil {
			storeError(w, err)
			return
		}
		m.ID = id
		writeJSON(w, nethttp.StatusCreated, m)
	}
}

// GET /api/medicines
func ListMedicinesHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ms, err := store.ListMedicines(r.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		if ms == nil {
			ms = []quiz.Medicine{}
		}
		writeJSON(w, nethttp.StatusOK, ms)
	}
}

// PUT /api/medicines/{id}
func UpdateMedicineHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			nethttp.Error(w, "bad id", nethttp.StatusBadRequest)
			return
		}
		var m quiz.Medicine
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		m.ID = id
		if msg := validateMedicine(m); msg != "" {
			nethttp.Error(w, msg, nethttp.StatusBadRequest)
			return
		}
		m.FassLink = normalizeFassLink(m.FassLink)
		if err := store.UpdateMedicine(r.Context(), m); err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, m)
	}
}

// DELETE /api/medicines/{id}
func DeleteMedicineHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			nethttp.Error(w, "bad id", nethttp.StatusBadRequest)
			return
		}
		if err := store.DeleteMedicine(r.Context(), id); err != nil {
			storeError(w, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}
