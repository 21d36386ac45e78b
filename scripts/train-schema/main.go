// train-schema stores the DDL of every table in the configured database as
// generator training data, optionally followed by curated examples.
//
// Usage: go run ./scripts/train-schema [-examples examples.yaml] [-dry-run]
//
// Configuration is read the same way as the server (config.yaml, .env and
// environment variables). The examples file is a YAML list of entries with
// any of the keys ddl, documentation, question and sql:
//
//   - documentation: "orders.amount is stored in cents"
//   - question: "每個用戶的訂單數量"
//     sql: "SELECT user_id, COUNT(*) FROM orders GROUP BY user_id"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/config"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/database"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/generator"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

func main() {
	examplesPath := flag.String("examples", "", "YAML file of extra training entries")
	dryRun := flag.Bool("dry-run", false, "List the tables that would be trained without storing anything")
	flag.Parse()

	cfg, err := config.Load("train-schema")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *examplesPath, *dryRun, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, examplesPath string, dryRun bool, logger *zap.Logger) error {
	// Read the examples first so a bad file fails before anything is stored.
	var examples []services.TrainRequest
	if examplesPath != "" {
		var err error
		if examples, err = loadExamples(examplesPath); err != nil {
			return err
		}
	}

	ds, err := datasource.Open(ctx, datasource.FromConfig(cfg.Database), logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer ds.Close()

	if dryRun {
		tables, err := ds.ListTables(ctx)
		if err != nil {
			return fmt.Errorf("failed to list tables: %w", err)
		}
		fmt.Println("DRY RUN - no training data will be stored")
		for _, t := range tables {
			fmt.Printf("  %s\n", t.Name)
		}
		fmt.Printf("\nTables that would be trained: %d\nExamples that would be added: %d\n", len(tables), len(examples))
		return nil
	}

	client, err := llm.NewFromConfig(cfg.LLM, logger)
	if errors.Is(err, llm.ErrNotConfigured) {
		return fmt.Errorf("training needs an LLM provider for embeddings: %w", err)
	}
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	trainingDB, err := database.Open(ctx, cfg.Generator.TrainingDBPath, logger)
	if err != nil {
		return fmt.Errorf("open training store: %w", err)
	}
	defer trainingDB.Close()

	gen := generator.NewLLMGenerator(client, generator.NewSQLiteTrainingStore(trainingDB.DB), generator.Config{
		Dialect:        datasource.DisplayName(cfg.Database.Type),
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		MaxExamples:    cfg.Generator.MaxExamples,
	}, nil, logger)
	training := services.NewTrainingService(gen, logger)

	stored, err := training.TrainSchema(ctx, ds)
	if err != nil {
		return err
	}
	fmt.Printf("Trained on %d tables\n", stored)

	for i, ex := range examples {
		resp, err := training.Train(ctx, ex)
		if err != nil {
			return fmt.Errorf("example %d: %w", i+1, err)
		}
		fmt.Printf("Example %d: %s\n", i+1, resp.Message)
	}
	return nil
}

func loadExamples(path string) ([]services.TrainRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read examples: %w", err)
	}
	var examples []services.TrainRequest
	if err := yaml.Unmarshal(data, &examples); err != nil {
		return nil, fmt.Errorf("failed to parse examples %s: %w", path, err)
	}
	return examples, nil
}
