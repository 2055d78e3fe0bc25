package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dosera-app/dosera/internal/engine"
)

// SQLStore implements Store on database/sql, for the sqlite and
// postgres drivers wired in internal/db.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// entityTables whitelists the kinds templates may reference. Lookup
// never interpolates a caller-supplied table name.
var entityTables = map[string]string{
	"medicine": "medicine",
}

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Lookup implements engine.EntityStore: one equality-filtered,
// single-record query per call.
func (s *SQLStore) Lookup(ctx context.Context, kind string, filter map[string]any) (engine.Record, error) {
	table, ok := entityTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q: %w", kind, engine.ErrEntityNotFound)
	}
	var (
		where []string
		args  []any
	)
	for col, val := range filter {
		if !identRe.MatchString(col) {
			return nil, fmt.Errorf("bad filter field %q: %w", col, engine.ErrEntityNotFound)
		}
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	q := "SELECT * FROM " + table
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " LIMIT 1"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, engine.ErrEntityNotFound
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	rec := engine.Record{}
	for i, c := range cols {
		switch v := vals[i].(type) {
		case []byte:
			rec[c] = string(v)
		default:
			rec[c] = v
		}
	}
	return rec, nil
}

// --- question templates ---

func (s *SQLStore) PutTemplate(ctx context.Context, t QuestionTemplate) (int64, error) {
	codes, hints, err := marshalTemplateJSON(t)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `INSERT INTO question_data
		(question, answer_unit_id, answer_formula, variating_values, course_codes, question_type_id, hints)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		t.Question, t.AnswerUnitID, t.AnswerFormula, t.VariatingValues, codes, t.QuestionTypeID, hints).Scan(&id)
	if err != nil {
		return 0, mapDBErr(err)
	}
	return id, s.refreshQuestionCounts(ctx)
}

func (s *SQLStore) GetTemplate(ctx context.Context, id int64) (QuestionTemplate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, question, answer_unit_id, answer_formula,
		variating_values, course_codes, question_type_id, hints
		FROM question_data WHERE id=$1`, id)
	return scanTemplate(row)
}

func (s *SQLStore) UpdateTemplate(ctx context.Context, t QuestionTemplate) error {
	codes, hints, err := marshalTemplateJSON(t)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE question_data SET
		question=$1, answer_unit_id=$2, answer_formula=$3, variating_values=$4,
		course_codes=$5, question_type_id=$6, hints=$7 WHERE id=$8`,
		t.Question, t.AnswerUnitID, t.AnswerFormula, t.VariatingValues, codes, t.QuestionTypeID, hints, t.ID)
	if err != nil {
		return mapDBErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return s.refreshQuestionCounts(ctx)
}

func (s *SQLStore) DeleteTemplate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM question_data WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return s.refreshQuestionCounts(ctx)
}

func (s *SQLStore) ListTemplates(ctx context.Context) ([]QuestionTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, question, answer_unit_id, answer_formula,
		variating_values, course_codes, question_type_id, hints FROM question_data ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []QuestionTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) RandomTemplates(ctx context.Context, courseCode string, n int) ([]QuestionTemplate, error) {
	var member string
	if s.driver == "postgres" {
		member = `EXISTS (SELECT 1 FROM json_array_elements_text(course_codes::json) AS cc(code) WHERE cc.code = $1)`
	} else {
		member = `EXISTS (SELECT 1 FROM json_each(question_data.course_codes) WHERE json_each.value = $1)`
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, question, answer_unit_id, answer_formula,
		variating_values, course_codes, question_type_id, hints
		FROM question_data WHERE `+member+` ORDER BY RANDOM() LIMIT $2`,
		strings.ToUpper(courseCode), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []QuestionTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) QuestionCounts(ctx context.Context) (map[string]int, error) {
	var member string
	if s.driver == "postgres" {
		member = `EXISTS (SELECT 1 FROM json_array_elements_text(qd.course_codes::json) AS cc(code) WHERE cc.code = c.course_code)`
	} else {
		member = `EXISTS (SELECT 1 FROM json_each(qd.course_codes) WHERE json_each.value = c.course_code)`
	}
	rows, err := s.db.QueryContext(ctx, `SELECT c.course_code, COUNT(DISTINCT qd.id)
		FROM course c LEFT JOIN question_data qd ON `+member+`
		GROUP BY c.course_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		counts[code] = n
	}
	return counts, rows.Err()
}

// refreshQuestionCounts recomputes course.num_questions after template
// writes, mirroring the counts query.
func (s *SQLStore) refreshQuestionCounts(ctx context.Context) error {
	var member string
	if s.driver == "postgres" {
		member = `EXISTS (SELECT 1 FROM json_array_elements_text(qd.course_codes::json) AS cc(code) WHERE cc.code = course.course_code)`
	} else {
		member = `EXISTS (SELECT 1 FROM json_each(qd.course_codes) WHERE json_each.value = course.course_code)`
	}
	_, err := s.db.ExecContext(ctx, `UPDATE course SET num_questions = COALESCE(
		(SELECT COUNT(*) FROM question_data qd WHERE `+member+`), 0)`)
	return err
}

func marshalTemplateJSON(t QuestionTemplate) (codes, hints string, err error) {
	cb, err := json.Marshal(upperAll(t.CourseCodes))
	if err != nil {
		return "", "", err
	}
	if t.Hints == nil {
		t.Hints = []string{}
	}
	hb, err := json.Marshal(t.Hints)
	if err != nil {
		return "", "", err
	}
	return string(cb), string(hb), nil
}

func upperAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (QuestionTemplate, error) {
	var t QuestionTemplate
	var codes, hints string
	err := row.Scan(&t.ID, &t.Question, &t.AnswerUnitID, &t.AnswerFormula,
		&t.VariatingValues, &codes, &t.QuestionTypeID, &hints)
	if errors.Is(err, sql.ErrNoRows) {
		return QuestionTemplate{}, ErrNotFound
	}
	if err != nil {
		return QuestionTemplate{}, err
	}
	if err := json.Unmarshal([]byte(codes), &t.CourseCodes); err != nil {
		return QuestionTemplate{}, fmt.Errorf("course_codes of question %d: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(hints), &t.Hints); err != nil {
		return QuestionTemplate{}, fmt.Errorf("hints of question %d: %w", t.ID, err)
	}
	return t, nil
}

// --- answer units ---

func (s *SQLStore) PutUnit(ctx context.Context, u AnswerUnit) (int64, error) {
	accepted, err := json.Marshal(u.AcceptedAnswer)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `INSERT INTO units (ascii_name, "precision", accepted_answer)
		VALUES ($1,$2,$3) RETURNING id`,
		u.AsciiName, nullableInt(u.Precision), string(accepted)).Scan(&id)
	if err != nil {
		return 0, mapDBErr(err)
	}
	return id, nil
}

func (s *SQLStore) GetUnit(ctx context.Context, id int64) (AnswerUnit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ascii_name, "precision", accepted_answer FROM units WHERE id=$1`, id)
	return scanUnit(row)
}

func (s *SQLStore) UpdateUnit(ctx context.Context, u AnswerUnit) error {
	accepted, err := json.Marshal(u.AcceptedAnswer)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE units SET ascii_name=$1, "precision"=$2, accepted_answer=$3 WHERE id=$4`,
		u.AsciiName, nullableInt(u.Precision), string(accepted), u.ID)
	if err != nil {
		return mapDBErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteUnit(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM units WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListUnits(ctx context.Context) ([]AnswerUnit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, ascii_name, "precision", accepted_answer FROM units ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AnswerUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUnit(row rowScanner) (AnswerUnit, error) {
	var u AnswerUnit
	var prec sql.NullInt64
	var accepted string
	err := row.Scan(&u.ID, &u.AsciiName, &prec, &accepted)
	if errors.Is(err, sql.ErrNoRows) {
		return AnswerUnit{}, ErrNotFound
	}
	if err != nil {
		return AnswerUnit{}, err
	}
	if prec.Valid {
		p := int(prec.Int64)
		u.Precision = &p
	}
	if err := json.Unmarshal([]byte(accepted), &u.AcceptedAnswer); err != nil {
		return AnswerUnit{}, fmt.Errorf("accepted_answer of unit %d: %w", u.ID, err)
	}
	return u, nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// --- courses ---

func (s *SQLStore) PutCourse(ctx context.Context, c Course) error {
	types, err := json.Marshal(c.QuestionTypes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO course (course_code, course_name, question_types, num_questions)
		VALUES ($1,$2,$3,0)`, strings.ToUpper(c.Code), c.Name, string(types))
	return mapDBErr(err)
}

func (s *SQLStore) GetCourse(ctx context.Context, code string) (Course, error) {
	var c Course
	var types sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT course_code, course_name, question_types, num_questions
		FROM course WHERE course_code=$1`, strings.ToUpper(code)).
		Scan(&c.Code, &c.Name, &types, &c.NumQuestions)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	if err != nil {
		return Course{}, err
	}
	if types.Valid && types.String != "" {
		if err := json.Unmarshal([]byte(types.String), &c.QuestionTypes); err != nil {
			return Course{}, fmt.Errorf("question_types of course %s: %w", c.Code, err)
		}
	}
	return c, nil
}

func (s *SQLStore) DeleteCourse(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM course WHERE course_code=$1`, strings.ToUpper(code))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT course_code, course_name, question_types, num_questions
		FROM course ORDER BY course_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Course
	for rows.Next() {
		var c Course
		var types sql.NullString
		if err := rows.Scan(&c.Code, &c.Name, &types, &c.NumQuestions); err != nil {
			return nil, err
		}
		if types.Valid && types.String != "" {
			if err := json.Unmarshal([]byte(types.String), &c.QuestionTypes); err != nil {
				return nil, fmt.Errorf("question_types of course %s: %w", c.Code, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- medicines ---

func (s *SQLStore) PutMedicine(ctx context.Context, m Medicine) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO medicine (namn, fass_link, variating_values)
		VALUES ($1,$2,$3) RETURNING id`,
		m.Name, m.FassLink, nullableString(m.VariatingValues)).Scan(&id)
	if err != nil {
		return 0, mapDBErr(err)
	}
	return id, nil
}

func (s *SQLStore) UpdateMedicine(ctx context.Context, m Medicine) error {
	res, err := s.db.ExecContext(ctx, `UPDATE medicine SET namn=$1, fass_link=$2, variating_values=$3 WHERE id=$4`,
		m.Name, m.FassLink, nullableString(m.VariatingValues), m.ID)
	if err != nil {
		return mapDBErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteMedicine(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM medicine WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListMedicines(ctx context.Context) ([]Medicine, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, namn, fass_link, variating_values FROM medicine ORDER BY namn`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Medicine
	for rows.Next() {
		var m Medicine
		var vv sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &m.FassLink, &vv); err != nil {
			return nil, err
		}
		m.VariatingValues = vv.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// --- question types ---

func (s *SQLStore) PutQuestionType(ctx context.Context, q QuestionType) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO qtype (name) VALUES ($1) RETURNING id`, q.Name).Scan(&id)
	if err != nil {
		return 0, mapDBErr(err)
	}
	return id, nil
}

func (s *SQLStore) DeleteQuestionType(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM qtype WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListQuestionTypes(ctx context.Context) ([]QuestionType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM qtype ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []QuestionType
	for rows.Next() {
		var q QuestionType
		if err := rows.Scan(&q.ID, &q.Name); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// --- answer history & stats ---

func (s *SQLStore) RecordAnswer(ctx context.Context, rec AnswerRecord) error {
	correct := -1
	if rec.Correct {
		correct = 1
	}
	when := rec.Date
	if when.IsZero() {
		when = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO answer_history (question_id, correct, course_code, date)
		VALUES ($1,$2,$3,$4)`, rec.QuestionID, correct, strings.ToUpper(rec.CourseCode), when.Unix())
	return err
}

func (s *SQLStore) AggregatedStats(ctx context.Context, f StatsFilter) ([]StatsBucket, error) {
	var bucket, day string
	if s.driver == "postgres" {
		day = `to_timestamp(a.date)::date`
		switch f.Aggregation {
		case "weekly":
			bucket = `to_char(to_timestamp(a.date), 'IYYY-IW')`
		case "monthly":
			bucket = `to_char(to_timestamp(a.date), 'YYYY-MM')`
		default:
			bucket = `to_char(to_timestamp(a.date), 'YYYY-MM-DD')`
		}
	} else {
		day = `date(a.date, 'unixepoch')`
		switch f.Aggregation {
		case "weekly":
			bucket = `strftime('%Y-%W', a.date, 'unixepoch')`
		case "monthly":
			bucket = `strftime('%Y-%m', a.date, 'unixepoch')`
		default:
			bucket = `date(a.date, 'unixepoch')`
		}
	}

	q := `SELECT ` + bucket + ` AS answer_date,
		SUM(CASE WHEN a.correct = 1 THEN 1 ELSE 0 END),
		SUM(CASE WHEN a.correct = -1 THEN 1 ELSE 0 END)
		FROM answer_history a`
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.QuestionTypeID != 0 {
		q += ` JOIN question_data qd ON a.question_id = qd.id`
		where = append(where, `qd.question_type_id = `+arg(f.QuestionTypeID))
	}
	if f.CourseCode != "" {
		where = append(where, `a.course_code = `+arg(strings.ToUpper(f.CourseCode)))
	}
	if f.QuestionID != 0 {
		where = append(where, `a.question_id = `+arg(f.QuestionID))
	}
	if f.StartDate != "" {
		where = append(where, day+` >= `+arg(f.StartDate))
	}
	if f.EndDate != "" {
		where = append(where, day+` <= `+arg(f.EndDate))
	}
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` GROUP BY answer_date ORDER BY answer_date`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatsBucket
	for rows.Next() {
		var b StatsBucket
		if err := rows.Scan(&b.Date, &b.Correct, &b.Wrong); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- feedback ---

func (s *SQLStore) AddFeedback(ctx context.Context, text string) (Feedback, error) {
	fb := Feedback{ID: uuid.NewString(), Text: text, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx, `INSERT INTO feedback (id, feedback_text, created_at) VALUES ($1,$2,$3)`,
		fb.ID, fb.Text, fb.CreatedAt.Unix())
	if err != nil {
		return Feedback{}, err
	}
	return fb, nil
}

func (s *SQLStore) ListFeedback(ctx context.Context) ([]Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, feedback_text, created_at FROM feedback ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Feedback
	for rows.Next() {
		var fb Feedback
		var unix int64
		if err := rows.Scan(&fb.ID, &fb.Text, &unix); err != nil {
			return nil, err
		}
		fb.CreatedAt = time.Unix(unix, 0).UTC()
		out = append(out, fb)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteFeedback(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM feedback WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// mapDBErr maps constraint violations onto the store's sentinel errors.
// Both drivers only expose the violation through the message text.
func mapDBErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
