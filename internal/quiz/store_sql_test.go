package quiz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dosera-app/dosera/internal/db"
	"github.com/dosera-app/dosera/internal/engine"
	"github.com/dosera-app/dosera/internal/quiz"
)

func newSQLStore(t *testing.T) *quiz.SQLStore {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	dbh.SetMaxOpenConns(1)
	t.Cleanup(func() { dbh.Close() })
	return quiz.NewSQLStore(dbh, "sqlite")
}

func seed(t *testing.T, s *quiz.SQLStore) (unitID, qtypeID, questionID int64) {
	t.Helper()
	ctx := context.Background()

	p := 0
	unitID, err := s.PutUnit(ctx, quiz.AnswerUnit{
		AsciiName:      "mg",
		Precision:      &p,
		AcceptedAnswer: []string{"mg", "milligram"},
	})
	if err != nil {
		t.Fatalf("put unit: %v", err)
	}

	qtypeID, err = s.PutQuestionType(ctx, quiz.QuestionType{Name: "dosberäkning"})
	if err != nil {
		t.Fatalf("put qtype: %v", err)
	}

	if err := s.PutCourse(ctx, quiz.Course{
		Code: "om1203", Name: "Läkemedelsberäkning", QuestionTypes: []string{"dosberäkning"},
	}); err != nil {
		t.Fatalf("put course: %v", err)
	}

	if _, err := s.PutMedicine(ctx, quiz.Medicine{
		Name:            "Alvedon",
		FassLink:        "https://www.fass.se/alvedon",
		VariatingValues: `{"dosage": [15]}`,
	}); err != nil {
		t.Fatalf("put medicine: %v", err)
	}

	questionID, err = s.PutTemplate(ctx, quiz.QuestionTemplate{
		Question:        "%%namn%% väger %%weight%% kg. Hur många mg %%medicine[0].namn%%?",
		AnswerUnitID:    unitID,
		AnswerFormula:   "medicine[0].dosage * weight",
		VariatingValues: `{"weight": [40, 80], "medicine.namn": ["Alvedon"]}`,
		CourseCodes:     []string{"om1203"},
		QuestionTypeID:  qtypeID,
	})
	if err != nil {
		t.Fatalf("put template: %v", err)
	}
	return unitID, qtypeID, questionID
}

func TestSQLStoreTemplateRoundTrip(t *testing.T) {
	s := newSQLStore(t)
	_, _, qid := seed(t, s)
	ctx := context.Background()

	got, err := s.GetTemplate(ctx, qid)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if got.CourseCodes[0] != "OM1203" {
		t.Errorf("course codes not uppercased: %v", got.CourseCodes)
	}
	if len(got.Hints) != 0 {
		t.Errorf("hints should default empty, got %v", got.Hints)
	}

	if _, err := s.GetTemplate(ctx, 9999); !errors.Is(err, quiz.ErrNotFound) {
		t.Errorf("missing template: err = %v", err)
	}
}

func TestSQLStoreRandomTemplatesAndCounts(t *testing.T) {
	s := newSQLStore(t)
	seed(t, s)
	ctx := context.Background()

	qs, err := s.RandomTemplates(ctx, "om1203", 5)
	if err != nil {
		t.Fatalf("random templates: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("got %d templates, want 1", len(qs))
	}

	counts, err := s.QuestionCounts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["OM1203"] != 1 {
		t.Errorf("counts = %v", counts)
	}

	course, err := s.GetCourse(ctx, "OM1203")
	if err != nil {
		t.Fatal(err)
	}
	if course.NumQuestions != 1 {
		t.Errorf("num_questions = %d, want 1", course.NumQuestions)
	}
}

func TestSQLStoreEntityLookup(t *testing.T) {
	s := newSQLStore(t)
	seed(t, s)
	ctx := context.Background()

	rec, err := s.Lookup(ctx, "medicine", map[string]any{"namn": "Alvedon"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec["fass_link"] != "https://www.fass.se/alvedon" {
		t.Errorf("record = %v", rec)
	}
	if rec["variating_values"] != `{"dosage": [15]}` {
		t.Errorf("variating_values = %v", rec["variating_values"])
	}

	if _, err := s.Lookup(ctx, "medicine", map[string]any{"namn": "Finnsinte"}); !errors.Is(err, engine.ErrEntityNotFound) {
		t.Errorf("missing medicine: err = %v", err)
	}
	// unknown kinds and hostile field names degrade to not-found
	if _, err := s.Lookup(ctx, "users", nil); !errors.Is(err, engine.ErrEntityNotFound) {
		t.Errorf("unknown kind: err = %v", err)
	}
	if _, err := s.Lookup(ctx, "medicine", map[string]any{"namn; DROP TABLE medicine": "x"}); !errors.Is(err, engine.ErrEntityNotFound) {
		t.Errorf("hostile field: err = %v", err)
	}
}

func TestSQLStoreDuplicates(t *testing.T) {
	s := newSQLStore(t)
	seed(t, s)
	ctx := context.Background()

	if _, err := s.PutMedicine(ctx, quiz.Medicine{Name: "Alvedon", FassLink: "x"}); !errors.Is(err, quiz.ErrDuplicate) {
		t.Errorf("duplicate medicine: err = %v", err)
	}
	if _, err := s.PutUnit(ctx, quiz.AnswerUnit{AsciiName: "mg", AcceptedAnswer: []string{"mg"}}); !errors.Is(err, quiz.ErrDuplicate) {
		t.Errorf("duplicate unit: err = %v", err)
	}
}

func TestSQLStoreAnswerHistory(t *testing.T) {
	s := newSQLStore(t)
	_, qtypeID, qid := seed(t, s)
	ctx := context.Background()

	day := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	for i, correct := range []bool{true, true, false} {
		err := s.RecordAnswer(ctx, quiz.AnswerRecord{
			QuestionID: qid,
			Correct:    correct,
			CourseCode: "om1203",
			Date:       day.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("record answer: %v", err)
		}
	}

	buckets, err := s.AggregatedStats(ctx, quiz.StatsFilter{CourseCode: "OM1203"})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("buckets = %v", buckets)
	}
	if buckets[0].Date != "2026-03-02" || buckets[0].Correct != 2 || buckets[0].Wrong != 1 {
		t.Errorf("bucket = %+v", buckets[0])
	}

	// filter by question type joins question_data
	buckets, err = s.AggregatedStats(ctx, quiz.StatsFilter{QuestionTypeID: qtypeID, Aggregation: "monthly"})
	if err != nil {
		t.Fatalf("stats by qtype: %v", err)
	}
	if len(buckets) != 1 || buckets[0].Date != "2026-03" {
		t.Errorf("buckets = %v", buckets)
	}

	// no hits outside the date window
	buckets, err = s.AggregatedStats(ctx, quiz.StatsFilter{StartDate: "2026-04-01"})
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 0 {
		t.Errorf("buckets = %v", buckets)
	}
}

func TestSQLStoreFeedback(t *testing.T) {
	s := newSQLStore(t)
	ctx := context.Background()

	fb, err := s.AddFeedback(ctx, "Bra sida!")
	if err != nil {
		t.Fatalf("add feedback: %v", err)
	}
	if fb.ID == "" {
		t.Fatal("feedback id missing")
	}
	list, err := s.ListFeedback(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Text != "Bra sida!" {
		t.Errorf("list = %v", list)
	}
	if err := s.DeleteFeedback(ctx, fb.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteFeedback(ctx, fb.ID); !errors.Is(err, quiz.ErrNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}
