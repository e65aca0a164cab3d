package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/adapter/repo"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag   string
		modelFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "completion API key (falls back to LLM_API_KEY)")
	flag.StringVar(&modelFlag, "model", os.Getenv("LLM_MODEL"), "model the key is issued for")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("LLM_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "LLM API key is required via -key or LLM_API_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "llmkey").Str("provider", credentials.ProviderZhipu).Logger()
	runner := infra.NewSQLRunner(pool, logger)
	if err := repo.EnsureSchema(ctx, runner); err != nil {
		fmt.Fprintf(os.Stderr, "failed to apply schema: %v\n", err)
		os.Exit(1)
	}

	if err := credentials.NewStore(runner).SetLLMAPIKey(ctx, key, modelFlag); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist llm api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("LLM API key stored successfully")
}
