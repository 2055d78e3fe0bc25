// Package quiz holds the persistent domain model: question templates,
// answer units, courses, medicines and answer history.
package quiz

import (
	"time"

	"github.com/dosera-app/dosera/internal/engine"
)

// QuestionTemplate is a stored, parameterized question. Text contains
// %%token%% placeholders; VariatingValues is the JSON generation spec.
// Immutable once fetched for a rendering.
type QuestionTemplate struct {
	ID              int64    `json:"id"`
	Question        string   `json:"question"`
	AnswerUnitID    int64    `json:"answer_unit_id"`
	AnswerFormula   string   `json:"answer_formula"`
	VariatingValues string   `json:"variating_values"`
	CourseCodes     []string `json:"course_codes"`
	QuestionTypeID  int64    `json:"question_type_id"`
	Hints           []string `json:"hints"`
}

// Engine returns the minimal view the rendering engine needs.
func (t QuestionTemplate) Engine() engine.Template {
	return engine.Template{
		ID:              t.ID,
		Text:            t.Question,
		AnswerFormula:   t.AnswerFormula,
		AnswerUnitID:    t.AnswerUnitID,
		VariatingValues: t.VariatingValues,
		Hints:           t.Hints,
	}
}

// AnswerUnit is stored per unit; the engine's verifier consumes it as-is.
type AnswerUnit = engine.AnswerUnit

type Course struct {
	Code          string   `json:"course_code"`
	Name          string   `json:"course_name"`
	QuestionTypes []string `json:"question_types"`
	NumQuestions  int      `json:"num_questions"`
}

// Medicine is the entity kind templates reference as medicine[i].field.
// VariatingValues may carry a nested scalar spec the resolver flattens.
type Medicine struct {
	ID              int64  `json:"id"`
	Name            string `json:"namn"`
	FassLink        string `json:"fass_link"`
	VariatingValues string `json:"variating_values,omitempty"`
}

type QuestionType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AnswerRecord is one graded submission, kept for statistics.
type AnswerRecord struct {
	ID         int64     `json:"id"`
	QuestionID int64     `json:"question_id"`
	Correct    bool      `json:"correct"`
	CourseCode string    `json:"course_code"`
	Date       time.Time `json:"date"`
}

type Feedback struct {
	ID        string    `json:"id"`
	Text      string    `json:"feedback_text"`
	CreatedAt time.Time `json:"created_at"`
}

// StatsFilter narrows the aggregated answer-history query. Zero values
// mean "all". Dates are YYYY-MM-DD.
type StatsFilter struct {
	QuestionID     int64
	QuestionTypeID int64
	CourseCode     string
	StartDate      string
	EndDate        string
	Aggregation    string // daily (default) | weekly | monthly
}

// StatsBucket is one aggregation interval of answer history.
type StatsBucket struct {
	Date    string `json:"answer_date"`
	Correct int    `json:"correct_count"`
	Wrong   int    `json:"wrong_count"`
}
