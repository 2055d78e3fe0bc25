package quiz

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dosera-app/dosera/internal/engine"
)

// MemStore is a mutex-guarded in-memory Store for tests and dev runs.
type MemStore struct {
	mu        sync.RWMutex
	templates map[int64]QuestionTemplate
	units     map[int64]AnswerUnit
	courses   map[string]Course
	medicines map[int64]Medicine
	qtypes    map[int64]QuestionType
	history   []AnswerRecord
	feedback  []Feedback
	nextID    int64
	rnd       *rand.Rand
}

func NewMemStore() *MemStore {
	return &MemStore{
		templates: map[int64]QuestionTemplate{},
		units:     map[int64]AnswerUnit{},
		courses:   map[string]Course{},
		medicines: map[int64]Medicine{},
		qtypes:    map[int64]QuestionType{},
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MemStore) id() int64 {
	m.nextID++
	return m.nextID
}

// Lookup implements engine.EntityStore over the medicine table. Values
// are compared through their canonical string form, so a JSON-decoded
// float filter still matches an integer id column.
func (m *MemStore) Lookup(_ context.Context, kind string, filter map[string]any) (engine.Record, error) {
	if kind != "medicine" {
		return nil, engine.ErrEntityNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, med := range m.medicines {
		rec := engine.Record{
			"id":        med.ID,
			"namn":      med.Name,
			"fass_link": med.FassLink,
		}
		if med.VariatingValues != "" {
			rec["variating_values"] = med.VariatingValues
		}
		match := true
		for f, want := range filter {
			got, ok := rec[f]
			if !ok || engine.FormatValue(got) != engine.FormatValue(want) {
				match = false
				break
			}
		}
		if match {
			return rec, nil
		}
	}
	return nil, engine.ErrEntityNotFound
}

func (m *MemStore) PutTemplate(_ context.Context, t QuestionTemplate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	t.CourseCodes = upperAll(t.CourseCodes)
	if t.Hints == nil {
		t.Hints = []string{}
	}
	m.templates[t.ID] = t
	m.refreshCountsLocked()
	return t.ID, nil
}

func (m *MemStore) GetTemplate(_ context.Context, id int64) (QuestionTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	if !ok {
		return QuestionTemplate{}, ErrNotFound
	}
	return t, nil
}

func (m *MemStore) UpdateTemplate(_ context.Context, t QuestionTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[t.ID]; !ok {
		return ErrNotFound
	}
	t.CourseCodes = upperAll(t.CourseCodes)
	m.templates[t.ID] = t
	m.refreshCountsLocked()
	return nil
}

func (m *MemStore) DeleteTemplate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; !ok {
		return ErrNotFound
	}
	delete(m.templates, id)
	m.refreshCountsLocked()
	return nil
}

func (m *MemStore) ListTemplates(_ context.Context) ([]QuestionTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]QuestionTemplate, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, t)
	}
	return out, nil
}

func (m *MemStore) RandomTemplates(_ context.Context, courseCode string, n int) ([]QuestionTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code := strings.ToUpper(courseCode)
	var pool []QuestionTemplate
	for _, t := range m.templates {
		for _, c := range t.CourseCodes {
			if c == code {
				pool = append(pool, t)
				break
			}
		}
	}
	m.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if n < len(pool) {
		pool = pool[:n]
	}
	return pool, nil
}

func (m *MemStore) QuestionCounts(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := map[string]int{}
	for code := range m.courses {
		counts[code] = 0
	}
	for _, t := range m.templates {
		for _, c := range t.CourseCodes {
			counts[c]++
		}
	}
	return counts, nil
}

func (m *MemStore) refreshCountsLocked() {
	for code, c := range m.courses {
		n := 0
		for _, t := range m.templates {
			for _, tc := range t.CourseCodes {
				if tc == code {
					n++
					break
				}
			}
		}
		c.NumQuestions = n
		m.courses[code] = c
	}
}

func (m *MemStore) PutUnit(_ context.Context, u AnswerUnit) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.units {
		if other.AsciiName == u.AsciiName {
			return 0, ErrDuplicate
		}
	}
	u.ID = m.id()
	m.units[u.ID] = u
	return u.ID, nil
}

func (m *MemStore) GetUnit(_ context.Context, id int64) (AnswerUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.units[id]
	if !ok {
		return AnswerUnit{}, ErrNotFound
	}
	return u, nil
}

func (m *MemStore) UpdateUnit(_ context.Context, u AnswerUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[u.ID]; !ok {
		return ErrNotFound
	}
	m.units[u.ID] = u
	return nil
}

func (m *MemStore) DeleteUnit(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[id]; !ok {
		return ErrNotFound
	}
	delete(m.units, id)
	return nil
}

func (m *MemStore) ListUnits(_ context.Context) ([]AnswerUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AnswerUnit, 0, len(m.units))
	for _, u := range m.units {
		out = append(out, u)
	}
	return out, nil
}

func (m *MemStore) PutCourse(_ context.Context, c Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Code = strings.ToUpper(c.Code)
	if _, ok := m.courses[c.Code]; ok {
		return ErrDuplicate
	}
	m.courses[c.Code] = c
	return nil
}

func (m *MemStore) GetCourse(_ context.Context, code string) (Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[strings.ToUpper(code)]
	if !ok {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func (m *MemStore) DeleteCourse(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	code = strings.ToUpper(code)
	if _, ok := m.courses[code]; !ok {
		return ErrNotFound
	}
	delete(m.courses, code)
	return nil
}

func (m *MemStore) ListCourses(_ context.Context) ([]Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Course, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, c)
	}
	return out, nil
}

func (m *MemStore) PutMedicine(_ context.Context, med Medicine) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.medicines {
		if other.Name == med.Name {
			return 0, ErrDuplicate
		}
	}
	med.ID = m.id()
	m.medicines[med.ID] = med
	return med.ID, nil
}

func (m *MemStore) UpdateMedicine(_ context.Context, med Medicine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.medicines[med.ID]; !ok {
		return ErrNotFound
	}
	m.medicines[med.ID] = med
	return nil
}

func (m *MemStore) DeleteMedicine(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.medicines[id]; !ok {
		return ErrNotFound
	}
	delete(m.medicines, id)
	return nil
}

func (m *MemStore) ListMedicines(_ context.Context) ([]Medicine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Medicine, 0, len(m.medicines))
	for _, med := range m.medicines {
		out = append(out, med)
	}
	return out, nil
}

func (m *MemStore) PutQuestionType(_ context.Context, q QuestionType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.qtypes {
		if other.Name == q.Name {
			return 0, ErrDuplicate
		}
	}
	q.ID = m.id()
	m.qtypes[q.ID] = q
	return q.ID, nil
}

func (m *MemStore) DeleteQuestionType(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.qtypes[id]; !ok {
		return ErrNotFound
	}
	delete(m.qtypes, id)
	return nil
}

func (m *MemStore) ListQuestionTypes(_ context.Context) ([]QuestionType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]QuestionType, 0, len(m.qtypes))
	for _, q := range m.qtypes {
		out = append(out, q)
	}
	return out, nil
}

func (m *MemStore) RecordAnswer(_ context.Context, rec AnswerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Date.IsZero() {
		rec.Date = time.Now()
	}
	rec.ID = m.id()
	rec.CourseCode = strings.ToUpper(rec.CourseCode)
	m.history = append(m.history, rec)
	return nil
}

func (m *MemStore) AggregatedStats(_ context.Context, f StatsFilter) ([]StatsBucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	buckets := map[string]*StatsBucket{}
	var order []string
	for _, rec := range m.history {
		if f.CourseCode != "" && rec.CourseCode != strings.ToUpper(f.CourseCode) {
			continue
		}
		if f.QuestionID != 0 && rec.QuestionID != f.QuestionID {
			continue
		}
		if f.QuestionTypeID != 0 {
			t, ok := m.templates[rec.QuestionID]
			if !ok || t.QuestionTypeID != f.QuestionTypeID {
				continue
			}
		}
		day := rec.Date.UTC().Format("2006-01-02")
		if f.StartDate != "" && day < f.StartDate {
			continue
		}
		if f.EndDate != "" && day > f.EndDate {
			continue
		}
		key := day
		switch f.Aggregation {
		case "weekly":
			y, w := rec.Date.UTC().ISOWeek()
			key = fmt.Sprintf("%d-%02d", y, w)
		case "monthly":
			key = rec.Date.UTC().Format("2006-01")
		}
		b, ok := buckets[key]
		if !ok {
			b = &StatsBucket{Date: key}
			buckets[key] = b
			order = append(order, key)
		}
		if rec.Correct {
			b.Correct++
		} else {
			b.Wrong++
		}
	}
	sort.Strings(order)
	out := make([]StatsBucket, 0, len(order))
	for _, k := range order {
		out = append(out, *buckets[k])
	}
	return out, nil
}

func (m *MemStore) AddFeedback(_ context.Context, text string) (Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fb := Feedback{ID: uuid.NewString(), Text: text, CreatedAt: time.Now().UTC()}
	m.feedback = append(m.feedback, fb)
	return fb, nil
}

func (m *MemStore) ListFeedback(_ context.Context) ([]Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Feedback, len(m.feedback))
	copy(out, m.feedback)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i] // newest first
	}
	return out, nil
}

func (m *MemStore) DeleteFeedback(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, fb := range m.feedback {
		if fb.ID == id {
			m.feedback = append(m.feedback[:i], m.feedback[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

