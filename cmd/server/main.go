package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"time"

	api "github.com/dosera-app/dosera/internal/api/http"
	"github.com/dosera-app/dosera/internal/auth"
	"github.com/dosera-app/dosera/internal/config"
	"github.com/dosera-app/dosera/internal/db"
	"github.com/dosera-app/dosera/internal/engine"
	"github.com/dosera-app/dosera/internal/quiz"
)

func main() {
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := quiz.NewSQLStore(dbh, cfg.DBDriver)

	seed := cfg.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	eng := engine.New(store, rand.New(rand.NewSource(seed)))

	authSvc := auth.NewService(cfg.AuthSecret, cfg.AdminUser, cfg.AdminPassHash)

	r := api.NewRouter(store, eng, authSvc, cfg.CORSOrigins)

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
