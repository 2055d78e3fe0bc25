package main

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSeedFileParsing(t *testing.T) {
	doc := `
units:
  - ascii_name: mg
    precision: 0
    accepted_answer: [mg, milligram]
question_types:
  - dosberäkning
courses:
  - course_code: OM1203
    course_name: Läkemedelsberäkning
    question_types: [dosberäkning]
medicines:
  - namn: Alvedon
    fass_link: https://www.fass.se/alvedon
    variating_values: '{"dosage": [15]}'
questions:
  - question: "%%namn%% väger %%weight%% kg. Hur många mg?"
    answer_unit: mg
    answer_formula: "medicine[0].dosage * weight"
    variating_values: '{"weight": [40, 80], "medicine.namn": ["Alvedon"]}'
    course_codes: [OM1203]
    question_type: dosberäkning
    hints:
      - mg/kg gånger kg
`
	var sf seedFile
	if err := yaml.Unmarshal([]byte(doc), &sf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(sf.Units) != 1 || sf.Units[0].AsciiName != "mg" {
		t.Errorf("units = %+v", sf.Units)
	}
	if sf.Units[0].Precision == nil || *sf.Units[0].Precision != 0 {
		t.Errorf("precision = %v", sf.Units[0].Precision)
	}
	if len(sf.Courses) != 1 || sf.Courses[0].Code != "OM1203" {
		t.Errorf("courses = %+v", sf.Courses)
	}
	if len(sf.Questions) != 1 {
		t.Fatalf("questions = %+v", sf.Questions)
	}
	q := sf.Questions[0]
	if q.AnswerUnit != "mg" || q.QuestionType != "dosberäkning" || len(q.Hints) != 1 {
		t.Errorf("question = %+v", q)
	}

	// a unit without precision stays nil, distinct from precision 0
	var sf2 seedFile
	if err := yaml.Unmarshal([]byte("units:\n  - ascii_name: st\n"), &sf2); err != nil {
		t.Fatal(err)
	}
	if sf2.Units[0].Precision != nil {
		t.Errorf("precision = %v, want nil", sf2.Units[0].Precision)
	}
}
