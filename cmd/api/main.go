package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"sedo/handler"
	"sedo/internal/integrations/paramstore"
	"sedo/internal/integrations/queue"
	"sedo/internal/repository"
	"sedo/internal/schema"
	"sedo/internal/usecase"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Configuration (env, optionally via SSM) ----
	params, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		logger.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	definitionTable := resolveConfig(ctx, params, "definition_table", "DEFINITION_TABLE")
	executionTable := resolveConfig(ctx, params, "execution_table", "EXECUTION_TABLE")
	queueName := resolveConfig(ctx, params, "queue_name", "QUEUE_NAME")

	// ---- Clients ----
	validator, err := schema.New()
	if err != nil {
		logger.Error("failed to compile schemas", "err", err)
		os.Exit(1)
	}
	dynamoClient := awsdynamodb.NewFromConfig(cfg)
	definitions, err := repository.NewDefinitionStore(dynamoClient, definitionTable)
	if err != nil {
		logger.Error("failed to create definition store", "err", err)
		os.Exit(1)
	}
	executions, err := repository.NewExecutionStore(dynamoClient, executionTable)
	if err != nil {
		logger.Error("failed to create execution store", "err", err)
		os.Exit(1)
	}
	dispatcher, err := queue.New(awssqs.NewFromConfig(cfg), queueName)
	if err != nil {
		logger.Error("failed to create dispatcher", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	service, err := usecase.NewService(definitions, executions, validator, dispatcher, logger)
	if err != nil {
		logger.Error("failed to create service", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewAPI(service)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

// resolveConfig reads a value from SSM under PARAM_PREFIX when set,
// otherwise from the environment.
func resolveConfig(ctx context.Context, params *paramstore.Client, param, envKey string) string {
	if prefix := strings.TrimRight(os.Getenv("PARAM_PREFIX"), "/"); prefix != "" {
		v, err := params.GetParameter(ctx, prefix+"/"+param)
		if err != nil {
			slog.Error("failed to resolve parameter", "param", param, "err", err)
			os.Exit(1)
		}
		return v
	}
	return mustEnv(envKey)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}
