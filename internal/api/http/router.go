package http

import (
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dosera-app/dosera/internal/auth"
	"github.com/dosera-app/dosera/internal/engine"
	"github.com/dosera-app/dosera/internal/quiz"
)

// NewRouter wires the public quiz surface and the JWT-protected admin
// surface onto one chi router.
func NewRouter(store quiz.Store, eng *engine.Engine, authSvc *auth.Service, corsOrigins []string) nethttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) { w.WriteHeader(nethttp.StatusOK) })

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", auth.LoginHandler(authSvc))

		// Public quiz surface
		r.Get("/questions/random", RandomQuestionsHandler(store, eng))
		r.Post("/questions/check-answer", CheckAnswerHandler(store, eng))
		r.Get("/questions/counts", QuestionCountsHandler(store))
		r.Get("/courses", ListCoursesHandler(store))
		r.Get("/courses/{code}", GetCourseHandler(store))
		r.Get("/units", ListUnitsHandler(store))
		r.Get("/question-types", ListQuestionTypesHandler(store))
		r.Get("/medicines", ListMedicinesHandler(store))
		r.Post("/feedback", AddFeedbackHandler(store))

		// Admin surface
		r.Group(func(pr chi.Router) {
			pr.Use(auth.JWTMiddleware(authSvc))

			pr.Get("/questions", ListQuestionsHandler(store))
			pr.Post("/questions", CreateQuestionHandler(store))
			pr.Get("/questions/{id}", GetQuestionHandler(store))
			pr.Put("/questions/{id}", UpdateQuestionHandler(store))
			pr.Delete("/questions/{id}", DeleteQuestionHandler(store))

			pr.Post("/units", CreateUnitHandler(store))
			pr.Put("/units/{id}", UpdateUnitHandler(store))
			pr.Delete("/units/{id}", DeleteUnitHandler(store))

			pr.Post("/courses", CreateCourseHandler(store))
			pr.Delete("/courses/{code}", DeleteCourseHandler(store))

			pr.Post("/medicines", CreateMedicineHandler(store))
			pr.Put("/medicines/{id}", UpdateMedicineHandler(store))
			pr.Delete("/medicines/{id}", DeleteMedicineHandler(store))

			pr.Post("/question-types", CreateQuestionTypeHandler(store))
			pr.Delete("/question-types/{id}", DeleteQuestionTypeHandler(store))

			pr.Get("/answers/aggregated", AggregatedStatsHandler(store))
			pr.Get("/feedback", ListFeedbackHandler(store))
			pr.Delete("/feedback/{id}", DeleteFeedbackHandler(store))
		})
	})

	return r
}
