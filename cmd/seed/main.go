// Command seed loads units, courses, medicines and question templates
// from a YAML file into the database. Existing records are skipped, so
// re-running against the same file is safe.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dosera-app/dosera/internal/config"
	"github.com/dosera-app/dosera/internal/db"
	"github.com/dosera-app/dosera/internal/quiz"
)

type seedFile struct {
	Units []struct {
		AsciiName      string   `yaml:"ascii_name"`
		Precision      *int     `yaml:"precision"`
		AcceptedAnswer []string `yaml:"accepted_answer"`
	} `yaml:"units"`
	QuestionTypes []string `yaml:"question_types"`
	Courses       []struct {
		Code          string   `yaml:"course_code"`
		Name          string   `yaml:"course_name"`
		QuestionTypes []string `yaml:"question_types"`
	} `yaml:"courses"`
	Medicines []struct {
		Name            string `yaml:"namn"`
		FassLink        string `yaml:"fass_link"`
		VariatingValues string `yaml:"variating_values"`
	} `yaml:"medicines"`
	Questions []struct {
		Question        string   `yaml:"question"`
		AnswerUnit      string   `yaml:"answer_unit"`
		AnswerFormula   string   `yaml:"answer_formula"`
		VariatingValues string   `yaml:"variating_values"`
		CourseCodes     []string `yaml:"course_codes"`
		QuestionType    string   `yaml:"question_type"`
		Hints           []string `yaml:"hints"`
	} `yaml:"questions"`
}

func main() {
	file := flag.String("file", "seed.yaml", "seed file")
	flag.Parse()

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read %s: %v", *file, err)
	}
	var sf seedFile
	if err := yaml.Unmarshal(raw, &sf); err != nil {
		log.Fatalf("parse %s: %v", *file, err)
	}

	cfg := config.FromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()
	store := quiz.NewSQLStore(dbh, cfg.DBDriver)

	unitIDs := map[string]int64{}
	for _, u := range sf.Units {
		id, err := store.PutUnit(ctx, quiz.AnswerUnit{
			AsciiName: u.AsciiName, Precision: u.Precision, AcceptedAnswer: u.AcceptedAnswer,
		})
		if errors.Is(err, quiz.ErrDuplicate) {
			id = lookupUnitID(ctx, store, u.AsciiName)
			log.Printf("unit %s already present", u.AsciiName)
		} else if err != nil {
			log.Fatalf("unit %s: %v", u.AsciiName, err)
		}
		unitIDs[u.AsciiName] = id
	}

	qtypeIDs := map[string]int64{}
	for _, name := range sf.QuestionTypes {
		id, err := store.PutQuestionType(ctx, quiz.QuestionType{Name: name})
		if errors.Is(err, quiz.ErrDuplicate) {
			id = lookupQTypeID(ctx, store, name)
			log.Printf("question type %s already present", name)
		} else if err != nil {
			log.Fatalf("question type %s: %v", name, err)
		}
		qtypeIDs[name] = id
	}

	for _, c := range sf.Courses {
		err := store.PutCourse(ctx, quiz.Course{
			Code: c.Code, Name: c.Name, QuestionTypes: c.QuestionTypes,
		})
		if errors.Is(err, quiz.ErrDuplicate) {
			log.Printf("course %s already present", c.Code)
		} else if err != nil {
			log.Fatalf("course %s: %v", c.Code, err)
		}
	}

	for _, m := range sf.Medicines {
		_, err := store.PutMedicine(ctx, quiz.Medicine{
			Name: m.Name, FassLink: m.FassLink, VariatingValues: m.VariatingValues,
		})
		if errors.Is(err, quiz.ErrDuplicate) {
			log.Printf("medicine %s already present", m.Name)
		} else if err != nil {
			log.Fatalf("medicine %s: %v", m.Name, err)
		}
	}

	added := 0
	for _, q := range sf.Questions {
		unitID, ok := unitIDs[q.AnswerUnit]
		if !ok {
			if unitID = lookupUnitID(ctx, store, q.AnswerUnit); unitID == 0 {
				log.Fatalf("question %q: unknown unit %q", q.Question, q.AnswerUnit)
			}
		}
		var qtypeID int64
		if q.QuestionType != "" {
			if qtypeID, ok = qtypeIDs[q.QuestionType]; !ok {
				if qtypeID = lookupQTypeID(ctx, store, q.QuestionType); qtypeID == 0 {
					log.Fatalf("question %q: unknown question type %q", q.Question, q.QuestionType)
				}
			}
		}
		_, err := store.PutTemplate(ctx, quiz.QuestionTemplate{
			Question:        q.Question,
			AnswerUnitID:    unitID,
			AnswerFormula:   q.AnswerFormula,
			VariatingValues: q.VariatingValues,
			CourseCodes:     q.CourseCodes,
			QuestionTypeID:  qtypeID,
			Hints:           q.Hints,
		})
		if err != nil {
			log.Fatalf("question %q: %v", q.Question, err)
		}
		added++
	}
	log.Printf("seeded %d questions from %s", added, *file)
}

func lookupUnitID(ctx context.Context, store *quiz.SQLStore, name string) int64 {
	units, err := store.ListUnits(ctx)
	if err != nil {
		return 0
	}
	for _, u := range units {
		if u.AsciiName == name {
			return u.ID
		}
	}
	return 0
}

func lookupQTypeID(ctx context.Context, store *quiz.SQLStore, name string) int64 {
	qts, err := store.ListQuestionTypes(ctx)
	if err != nil {
		return 0
	}
	for _, qt := range qts {
		if qt.Name == name {
			return qt.ID
		}
	}
	return 0
}
