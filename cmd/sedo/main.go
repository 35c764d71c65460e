// Command sedo feeds a synthetic event through the execution engine against
// real infrastructure, for manual and offline testing. It reads a definition
// from a YAML file, optionally seeds the execution record, processes one
// event, and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"sedo/internal/domain"
	"sedo/internal/integrations/queue"
	"sedo/internal/repository"
	"sedo/internal/schema"
	"sedo/internal/usecase"
)

func main() {
	var (
		tenantID    = flag.String("tenant", "local", "tenant id")
		executionID = flag.String("execution-id", "", "execution id (generated when empty)")
		step        = flag.String("step", "", "current step id")
		wait        = flag.String("wait", "", "wait timestamp (2006-01-02T15:04:05Z)")
		input       = flag.String("input", "", "execution input as JSON")
		create      = flag.Bool("create", false, "seed the execution record before processing")
		table       = flag.String("table", envOr("EXECUTION_TABLE", "sedo_execution"), "execution table name")
		queueName   = flag.String("queue", envOr("QUEUE_NAME", "sedo_execution-processor-queue"), "processing queue name")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: sedo [flags] <definition.yaml> <state>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	state := domain.State(flag.Arg(1))
	if !state.Valid() {
		fatal(logger, "invalid state", "state", flag.Arg(1))
	}

	def, err := loadDefinition(flag.Arg(0))
	if err != nil {
		fatal(logger, "failed to load definition", "err", err)
	}

	var inputDoc map[string]any
	if *input != "" {
		if err := json.Unmarshal([]byte(*input), &inputDoc); err != nil {
			fatal(logger, "failed to parse input", "err", err)
		}
	}

	id := *executionID
	if id == "" {
		id = fmt.Sprintf("%s:%s:%s", *tenantID, def.ID, strings.SplitN(uuid.NewString(), "-", 2)[0])
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		fatal(logger, "failed to load AWS config", "err", err)
	}

	validator, err := schema.New()
	if err != nil {
		fatal(logger, "failed to compile schemas", "err", err)
	}
	executions, err := repository.NewExecutionStore(awsdynamodb.NewFromConfig(cfg), *table)
	if err != nil {
		fatal(logger, "failed to create execution store", "err", err)
	}
	dispatcher, err := queue.New(awssqs.NewFromConfig(cfg), *queueName)
	if err != nil {
		fatal(logger, "failed to create dispatcher", "err", err)
	}
	engine, err := usecase.NewEngine(validator, executions, dispatcher, logger)
	if err != nil {
		fatal(logger, "failed to create engine", "err", err)
	}
	runner, err := usecase.NewRunner(engine, logger)
	if err != nil {
		fatal(logger, "failed to create runner", "err", err)
	}

	def.TenantID = *tenantID
	if *create {
		err := executions.Put(ctx, domain.Execution{
			TenantID:   *tenantID,
			ID:         id,
			State:      state,
			Input:      inputDoc,
			Definition: def,
		})
		if err != nil {
			fatal(logger, "failed to seed execution record", "err", err)
		}
		logger.Info("seeded execution record", "tenantId", *tenantID, "id", id)
	}

	event := domain.Event{
		TenantID:      *tenantID,
		ID:            id,
		State:         state,
		Step:          *step,
		WaitTimestamp: *wait,
		Input:         inputDoc,
	}
	body, err := json.Marshal(event)
	if err != nil {
		fatal(logger, "failed to marshal event", "err", err)
	}

	results := runner.Run(ctx, [][]byte{body})
	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		fatal(logger, "failed to marshal results", "err", err)
	}
	fmt.Println(string(out))
}

func loadDefinition(path string) (domain.Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Definition{}, err
	}
	var def domain.Definition
	if err := yaml.UnmarshalWithOptions(raw, &def, yaml.Strict()); err != nil {
		return domain.Definition{}, err
	}
	return def, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
