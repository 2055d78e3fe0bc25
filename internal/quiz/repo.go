package quiz

import (
	"context"
	"errors"

	"github.com/dosera-app/dosera/internal/engine"
)

var ErrNotFound = errors.New("record not found")

// ErrDuplicate marks unique-constraint violations so handlers can map
// them to 409 instead of a generic database error.
var ErrDuplicate = errors.New("duplicate record")

// Store is the storage surface for the quiz domain. Implementations:
// SQLStore (sqlite/postgres) and MemStore (tests, dev).
//
// Every Store also serves as the engine's read-only entity store.
type Store interface {
	engine.EntityStore

	// Question templates
	PutTemplate(ctx context.Context, t QuestionTemplate) (int64, error)
	GetTemplate(ctx context.Context, id int64) (QuestionTemplate, error)
	UpdateTemplate(ctx context.Context, t QuestionTemplate) error
	DeleteTemplate(ctx context.Context, id int64) error
	ListTemplates(ctx context.Context) ([]QuestionTemplate, error)
	// RandomTemplates picks n distinct templates tagged with the course.
	RandomTemplates(ctx context.Context, courseCode string, n int) ([]QuestionTemplate, error)
	// QuestionCounts maps course code -> number of templates.
	QuestionCounts(ctx context.Context) (map[string]int, error)

	// Answer units
	PutUnit(ctx context.Context, u AnswerUnit) (int64, error)
	GetUnit(ctx context.Context, id int64) (AnswerUnit, error)
	UpdateUnit(ctx context.Context, u AnswerUnit) error
	DeleteUnit(ctx context.Context, id int64) error
	ListUnits(ctx context.Context) ([]AnswerUnit, error)

	// Courses
	PutCourse(ctx context.Context, c Course) error
	GetCourse(ctx context.Context, code string) (Course, error)
	DeleteCourse(ctx context.Context, code string) error
	ListCourses(ctx context.Context) ([]Course, error)

	// Medicines
	PutMedicine(ctx context.Context, m Medicine) (int64, error)
	UpdateMedicine(ctx context.Context, m Medicine) error
	DeleteMedicine(ctx context.Context, id int64) error
	ListMedicines(ctx context.Context) ([]Medicine, error)

	// Question types
	PutQuestionType(ctx context.Context, q QuestionType) (int64, error)
	DeleteQuestionType(ctx context.Context, id int64) error
	ListQuestionTypes(ctx context.Context) ([]QuestionType, error)

	// Answer history
	RecordAnswer(ctx context.Context, rec AnswerRecord) error
	AggregatedStats(ctx context.Context, f StatsFilter) ([]StatsBucket, error)

	// Feedback
	AddFeedback(ctx context.Context, text string) (Feedback, error)
	ListFeedback(ctx context.Context) ([]Feedback, error)
	DeleteFeedback(ctx context.Context, id string) error
}
