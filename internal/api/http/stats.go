package http

import (
	"regexp"
	"strconv"
	"strings"

	nethttp "net/http"

	"github.com/dosera-app/dosera/internal/quiz"
)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// GET /api/answers/aggregated?course_code=&question_id=&question_type_id=&start_date=&end_date=&aggregation=
func AggregatedStatsHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		q := r.URL.Query()
		f := quiz.StatsFilter{
			CourseCode:  strings.TrimSpace(q.Get("course_code")),
			StartDate:   q.Get("start_date"),
			EndDate:     q.Get("end_date"),
			Aggregation: q.Get("aggregation"),
		}
		if v := q.Get("question_id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				nethttp.Error(w, "bad question_id", nethttp.StatusBadRequest)
				return
			}
			f.QuestionID = id
		}
		if v := q.Get("question_type_id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				nethttp.Error(w, "bad question_type_id", nethttp.StatusBadRequest)
				return
			}
			f.QuestionTypeID = id
		}
		for _, d := range []string{f.StartDate, f.EndDate} {
			if d != "" && !isoDateRe.MatchString(d) {
				nethttp.Error(w, "dates must be YYYY-MM-DD", nethttp.StatusBadRequest)
				return
			}
		}
		switch f.Aggregation {
		case "", "daily", "weekly", "monthly":
		default:
			nethttp.Error(w, "aggregation must be daily, weekly or monthly", nethttp.StatusBadRequest)
			return
		}

		buckets, err := store.AggregatedStats(r.Context(), f)
		if err != nil {
			storeError(w, err)
			return
		}
		if buckets == nil {
			buckets = []quiz.StatsBucket{}
		}
		writeJSON(w, nethttp.StatusOK, buckets)
	}
}
