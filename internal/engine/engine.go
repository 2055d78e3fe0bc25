package engine

import (
	"context"
	"log"
	"math/rand"
)

// Template is the minimal view of a question template the engine needs.
// The storage layer owns the full record; the engine only reads it.
type Template struct {
	ID              int64
	Text            string
	AnswerFormula   string
	AnswerUnitID    int64
	VariatingValues string // JSON mapping, see ParseSpecJSON
	Hints           []string
}

// Rendered is one concrete question instance: template text with all
// placeholders substituted, plus everything the answer check needs later.
type Rendered struct {
	ID              int64    `json:"id"`
	Question        string   `json:"question"`
	GeneratedValues ValueSet `json:"generated_values"`
	AnswerFormula   string   `json:"answer_formula"`
	AnswerUnitID    int64    `json:"answer_unit_id"`
	Hints           []string `json:"hints"`
	// MedicineLinks maps resolved medicine names to their fass.se pages.
	MedicineLinks map[string]string `json:"medicine_link"`
	// ComputedAnswer is nil when the formula could not be evaluated;
	// grading is blocked for such an instance.
	ComputedAnswer *float64 `json:"computed_answer"`
}

// maxConditionRolls bounds re-generation when a template condition
// rejects a roll. After that the last roll is kept and logged; a
// template whose condition can never hold still renders.
const maxConditionRolls = 32

// Engine is the template resolution pipeline. Each Render call is a
// self-contained, stateless invocation; concurrent renderings share
// nothing but the read-only entity store.
type Engine struct {
	entities EntityStore
	gen      *Generator
}

func New(entities EntityStore, rnd *rand.Rand) *Engine {
	return &Engine{entities: entities, gen: NewGenerator(rnd)}
}

// Render resolves one template into a concrete question: parse the
// variating spec, resolve entity references, sample scalar values,
// substitute all placeholders and evaluate the answer formula.
func (e *Engine) Render(ctx context.Context, t Template) (Rendered, error) {
	spec, err := ParseSpecJSON(t.VariatingValues)
	if err != nil {
		// permissive per contract: a broken spec renders with markers
		log.Printf("question %d: %v", t.ID, err)
		spec = ParseSpec(nil)
	}

	resolved, err := ResolveEntities(ctx, e.entities, spec.EntityFilters)
	if err != nil {
		return Rendered{}, err
	}

	text := e.substitutePersonName(t.Text)
	tokens := extractTokens(text)

	values := e.buildValueSet(tokens, spec, resolved)
	if spec.Condition != "" {
		values = e.rerollUntil(spec.Condition, tokens, spec, resolved, values)
	}

	out := Rendered{
		ID:              t.ID,
		Question:        substituteTokens(text, values),
		GeneratedValues: values,
		// the client echoes this back at grading time, so it carries
		// the concrete values, never the variable names
		AnswerFormula: substituteValues(t.AnswerFormula, values),
		AnswerUnitID:  t.AnswerUnitID,
		Hints:         t.Hints,
		MedicineLinks: medicineLinks(resolved),
	}

	answer, err := EvaluateFormula(t.AnswerFormula, values)
	if err != nil {
		log.Printf("question %d: %v", t.ID, err)
	} else {
		out.ComputedAnswer = &answer
	}
	return out, nil
}

// rerollUntil regenerates the value set until the template condition
// holds, up to maxConditionRolls attempts. A condition that cannot be
// evaluated (unknown references, syntax errors) accepts the first roll.
func (e *Engine) rerollUntil(cond string, tokens []string, spec VariatingSpec, resolved ResolvedEntities, values ValueSet) ValueSet {
	for i := 0; i < maxConditionRolls; i++ {
		ok, err := EvaluateCondition(cond, values)
		if err != nil {
			log.Printf("condition %q: %v", cond, err)
			return values
		}
		if ok {
			return values
		}
		values = e.buildValueSet(tokens, spec, resolved)
	}
	log.Printf("condition %q never satisfied after %d rolls", cond, maxConditionRolls)
	return values
}

// medicineLinks collects name -> fass link for every resolved medicine.
func medicineLinks(resolved ResolvedEntities) map[string]string {
	links := map[string]string{}
	for idx := range resolved["medicine"] {
		name, ok := resolved.Field("medicine", idx, "namn")
		if !ok {
			continue
		}
		link, ok := resolved.Field("medicine", idx, "fass_link")
		if !ok {
			continue
		}
		ns, ok1 := name.(string)
		ls, ok2 := link.(string)
		if ok1 && ok2 {
			links[ns] = ls
		}
	}
	return links
}
