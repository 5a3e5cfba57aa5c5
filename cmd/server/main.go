package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ladywillingdontech-stack/healthai/internal/config"
	"github.com/ladywillingdontech-stack/healthai/internal/db"
	httpserver "github.com/ladywillingdontech-stack/healthai/internal/http"
	"github.com/ladywillingdontech-stack/healthai/internal/intake"
	"github.com/ladywillingdontech-stack/healthai/internal/llm"

	_ "github.com/lib/pq"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	rules, err := intake.LoadRules(cfg.RulesFile)
	if err != nil {
		log.Fatal().Err(err).Str("rules_file", cfg.RulesFile).Msg("failed to load intake rules")
	}

	// Storage: Postgres when DATABASE_URL is set, otherwise the in-memory
	// store for local development.
	var (
		sessions  intake.SessionStore
		emrs      intake.EMRStore
		events    intake.EventSink
		directory httpserver.Directory
	)
	if cfg.DatabaseURL != "" {
		dbConn, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open database")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dbConn.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		if err := db.Migrate(context.Background(), dbConn); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		repo := db.NewRepository(dbConn)
		sessions, emrs, directory = repo, repo, repo
		events = db.NewNotifier(dbConn)
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store")
		mem := db.NewMemoryStore()
		sessions, emrs, directory = mem, mem, mem
	}

	// NLG collaborator: OpenAI when a key is configured, otherwise the
	// deterministic mock for local development.
	var nlg intake.NLG
	if cfg.OpenAIAPIKey != "" {
		nlg = llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, using mock NLG client")
		nlg = llm.NewMockClient()
	}

	machine := intake.NewMachine(rules)
	processor := intake.NewProcessor(machine, nlg, sessions, emrs, events, log, intake.ProcessorOptions{
		NLGTimeout:     time.Duration(cfg.NLGTimeoutMillis) * time.Millisecond,
		MaxTurnRetries: cfg.MaxTurnRetries,
	})

	srv := httpserver.NewServer(processor, directory, cfg.VerifyToken, log)
	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
