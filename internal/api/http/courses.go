package http

import (
	"encoding/json"
	"regexp"
	"strings"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dosera-app/dosera/internal/quiz"
)

// Swedish higher-education course codes: two letters, four digits.
var courseCodeRe = regexp.MustCompile(`^[a-zA-ZÅÄÖåäö]{2}\d{4}$`)

// POST /api/courses
//
// Question types named by the course must already exist; a typo here
// would otherwise silently orphan the course's question filters.
func CreateCourseHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var c quiz.Course
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		c.Code = strings.TrimSpace(c.Code)
		if !courseCodeRe.MatchString(c.Code) {
			nethttp.Error(w, "course_code must match XX0000", nethttp.StatusBadRequest)
			return
		}
		if strings.TrimSpace(c.Name) == "" {
			nethttp.Error(w, "course_name required", nethttp.StatusBadRequest)
			return
		}

		known, err := store.ListQuestionTypes(r.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		byName := make(map[string]bool, len(known))
		for _, qt := range known {
			byName[qt.Name] = true
		}
		for _, name := range c.QuestionTypes {
			if !byName[name] {
				nethttp.Error(w, "unknown question type: "+name, nethttp.StatusBadRequest)
				return
			}
		}

		if err := store.PutCourse(r.Context(), c); err != nil {
			storeError(w, err)
			return
		}
		c.Code = strings.ToUpper(c.Code)
		writeJSON(w, nethttp.StatusCreated, c)
	}
}

// GET /api/courses
func ListCoursesHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		courses, err := store.ListCourses(r.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		if courses == nil {
			courses = []quiz.Course{}
		}
		writeJSON(w, nethttp.StatusOK, courses)
	}
}

// GET /api/courses/{code}
func GetCourseHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		c, err := store.GetCourse(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, c)
	}
}

// DELETE /api/courses/{code}
func DeleteCourseHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := store.DeleteCourse(r.Context(), chi.URLParam(r, "code")); err != nil {
			storeError(w, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}
