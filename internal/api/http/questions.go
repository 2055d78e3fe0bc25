package http

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"

	nethttp "net/http"

	"github.com/dosera-app/dosera/internal/engine"
	"github.com/dosera-app/dosera/internal/quiz"
)

const (
	defaultBatchSize = 10
	maxBatchSize     = 50
)

// GET /api/questions/random?course_code=OM1203&count=10
//
// Each template is rendered independently; a template whose spec is
// broken still renders with error markers, so one bad question never
// hides the rest of the batch.
func RandomQuestionsHandler(store quiz.Store, eng *engine.Engine) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		course := strings.TrimSpace(r.URL.Query().Get("course_code"))
		if course == "" {
			nethttp.Error(w, "course_code required", nethttp.StatusBadRequest)
			return
		}
		n := defaultBatchSize
		if v, err := strconv.Atoi(r.URL.Query().Get("count")); err == nil && v > 0 {
			if v > maxBatchSize {
				v = maxBatchSize
			}
			n = v
		}

		templates, err := store.RandomTemplates(r.Context(), course, n)
		if err != nil {
			storeError(w, err)
			return
		}

		out := make([]engine.Rendered, 0, len(templates))
		for _, t := range templates {
			rendered, err := eng.Render(r.Context(), t.Engine())
			if err != nil {
				log.Printf("render question %d: %v", t.ID, err)
				continue
			}
			out = append(out, rendered)
		}
		writeJSON(w, nethttp.StatusOK, out)
	}
}

// POST /api/questions/check-answer
//
// The client sends back the substituted formula it was handed at
// render time; the expected value is recomputed here so the client
// never sees or supplies the answer itself.
func CheckAnswerHandler(store quiz.Store, eng *engine.Engine) nethttp.HandlerFunc {
	type request struct {
		QuestionID int64  `json:"question_id"`
		CourseCode string `json:"course_code"`
		UnitID     int64  `json:"answer_unit_id"`
		Formula    string `json:"answer_formula"`
		Answer     string `json:"answer"`
	}
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Formula) == "" {
			nethttp.Error(w, "answer_formula required", nethttp.StatusBadRequest)
			return
		}

		unit, err := store.GetUnit(r.Context(), req.UnitID)
		if err != nil {
			if errors.Is(err, quiz.ErrNotFound) {
				nethttp.Error(w, "unknown answer unit", nethttp.StatusBadRequest)
				return
			}
			storeError(w, err)
			return
		}

		result, err := eng.Check(req.Answer, req.Formula, unit)
		if err != nil {
			nethttp.Error(w, "unevaluable formula", nethttp.StatusBadRequest)
			return
		}

		// History is best effort. A stats hiccup must not fail grading.
		if req.QuestionID != 0 {
			err := store.RecordAnswer(r.Context(), quiz.AnswerRecord{
				QuestionID: req.QuestionID,
				Correct:    result.Correct,
				CourseCode: req.CourseCode,
			})
			if err != nil {
				log.Printf("record answer for question %d: %v", req.QuestionID, err)
			}
		}
		writeJSON(w, nethttp.StatusOK, result)
	}
}

// GET /api/questions/counts
func QuestionCountsHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		counts, err := store.QuestionCounts(r.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, counts)
	}
}

func validateTemplate(t quiz.QuestionTemplate) string {
	switch {
	case strings.TrimSpace(t.Question) == "":
		return "question required"
	case strings.TrimSpace(t.AnswerFormula) == "":
		return "answer_formula required"
	case t.AnswerUnitID <= 0:
		return "answer_unit_id required"
	case len(t.CourseCodes) == 0:
		return "course_codes required"
	}
	if t.VariatingValues != "" {
		if _, err := engine.ParseSpecJSON(t.VariatingValues); err != nil {
			return "variating_values is not valid JSON"
		}
	}
	return ""
}

// POST /api/questions
func CreateQuestionHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var t quiz.QuestionTemplate
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		if msg := validateTemplate(t); msg != "" {
			nethttp.Error(w, msg, nethttp.StatusBadRequest)
			return
		}
		id, err := store.PutTemplate(r.Context(), t)
		if err != nil {
			storeError(w, err)
			return
		}
		t.ID = id
		writeJSON(w, nethttp.StatusCreated, t)
	}
}

// GET /api/questions/{id}
func GetQuestionHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			nethttp.Error(w, "bad id", nethttp.StatusBadRequest)
			return
		}
		t, err := store.GetTemplate(r.Context(), id)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, t)
	}
}

// GET /api/questions
func ListQuestionsHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ts, err := store.ListTemplates(r.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		if ts == nil {
			ts = []quiz.QuestionTemplate{}
		}
		writeJSON(w, nethttp.StatusOK, ts)
	}
}

// PUT /api/questions/{id}
func UpdateQuestionHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			nethttp.Error(w, "bad id", nethttp.StatusBadRequest)
			return
		}
		var t quiz.QuestionTemplate
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		t.ID = id
		if msg := validateTemplate(t); msg != "" {
			nethttp.Error(w, msg, nethttp.StatusBadRequest)
			return
		}
		if err := store.UpdateTemplate(r.Context(), t); err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, t)
	}
}

// DELETE /api/questions/{id}
func DeleteQuestionHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			nethttp.Error(w, "bad id", nethttp.StatusBadRequest)
			return
		}
		if err := store.DeleteTemplate(r.Context(), id); err != nil {
			storeError(w, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}
