package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"sedo/internal/domain"
	"sedo/internal/usecase"
)

// apiService is the front-door contract consumed by the API handler.
type apiService interface {
	ListDefinitions(ctx context.Context, tenantID string) ([]domain.Definition, error)
	CreateDefinition(ctx context.Context, tenantID string, doc []byte) (domain.Definition, error)
	GetDefinition(ctx context.Context, tenantID, id string) (domain.Definition, error)
	DeleteDefinition(ctx context.Context, tenantID, id string) error
	SubmitExecution(ctx context.Context, tenantID, definitionID string, input map[string]any) (usecase.SubmitReceipt, error)
	ListExecutions(ctx context.Context, tenantID string) ([]domain.Execution, error)
	GetExecution(ctx context.Context, tenantID, id string) (domain.Execution, error)
}

// API routes API Gateway proxy requests to the service operations.
type API struct {
	service apiService
}

// NewAPI creates an API handler.
func NewAPI(s apiService) (*API, error) {
	if s == nil {
		return nil, errors.New("handler: service must not be nil")
	}
	return &API{service: s}, nil
}

// submitRequest is the body of POST .../definitions/{id}/executions.
type submitRequest struct {
	Input map[string]any `json:"input"`
}

// problem is the RFC-7807-style error body.
type problem struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// Handle dispatches one API Gateway request. Routes:
//
//	GET    /tenants/{tenantId}/definitions
//	POST   /tenants/{tenantId}/definitions
//	GET    /tenants/{tenantId}/definitions/{id}
//	DELETE /tenants/{tenantId}/definitions/{id}
//	POST   /tenants/{tenantId}/definitions/{id}/executions
//	GET    /tenants/{tenantId}/executions
//	GET    /tenants/{tenantId}/executions/{id}
func (a *API) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)

	segments := splitPath(req.Path)
	if len(segments) < 3 || segments[0] != "tenants" {
		return respondProblem(corrID, http.StatusNotFound, "route not found", req.Path), nil
	}
	tenantID := segments[1]
	resource := segments[2]
	rest := segments[3:]

	switch {
	case resource == "definitions" && len(rest) == 0 && req.HTTPMethod == http.MethodGet:
		defs, err := a.service.ListDefinitions(ctx, tenantID)
		return a.finish(corrID, http.StatusOK, defs, err), nil

	case resource == "definitions" && len(rest) == 0 && req.HTTPMethod == http.MethodPost:
		def, err := a.service.CreateDefinition(ctx, tenantID, []byte(req.Body))
		return a.finish(corrID, http.StatusCreated, def, err), nil

	case resource == "definitions" && len(rest) == 1 && req.HTTPMethod == http.MethodGet:
		def, err := a.service.GetDefinition(ctx, tenantID, rest[0])
		return a.finish(corrID, http.StatusOK, def, err), nil

	case resource == "definitions" && len(rest) == 1 && req.HTTPMethod == http.MethodDelete:
		err := a.service.DeleteDefinition(ctx, tenantID, rest[0])
		return a.finish(corrID, http.StatusNoContent, nil, err), nil

	case resource == "definitions" && len(rest) == 2 && rest[1] == "executions" && req.HTTPMethod == http.MethodPost:
		var body submitRequest
		if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
			return respondProblem(corrID, http.StatusBadRequest, "invalid request body", err.Error()), nil
		}
		receipt, err := a.service.SubmitExecution(ctx, tenantID, rest[0], body.Input)
		return a.finish(corrID, http.StatusCreated, receipt, err), nil

	case resource == "executions" && len(rest) == 0 && req.HTTPMethod == http.MethodGet:
		execs, err := a.service.ListExecutions(ctx, tenantID)
		return a.finish(corrID, http.StatusOK, execs, err), nil

	case resource == "executions" && len(rest) == 1 && req.HTTPMethod == http.MethodGet:
		exec, err := a.service.GetExecution(ctx, tenantID, rest[0])
		return a.finish(corrID, http.StatusOK, exec, err), nil
	}

	return respondProblem(corrID, http.StatusNotFound, "route not found", req.Path), nil
}

// finish maps a service result or error onto a proxy response.
func (a *API) finish(corrID string, okStatus int, body any, err error) events.APIGatewayProxyResponse {
	if err != nil {
		status, title := statusForError(err)
		return respondProblem(corrID, status, title, err.Error())
	}
	if body == nil {
		return respond(corrID, okStatus, "")
	}
	raw, merr := json.Marshal(body)
	if merr != nil {
		return respondProblem(corrID, http.StatusInternalServerError, "response encoding failed", merr.Error())
	}
	return respond(corrID, okStatus, string(raw))
}

func statusForError(err error) (int, string) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, string(usecase.ErrorInternal)
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput, usecase.ErrorValidation:
		return http.StatusBadRequest, string(ucErr.Code)
	case usecase.ErrorNotFound:
		return http.StatusNotFound, string(ucErr.Code)
	default:
		return http.StatusInternalServerError, string(ucErr.Code)
	}
}

func respond(corrID string, status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":     "application/json",
			"X-Correlation-Id": corrID,
		},
		Body: body,
	}
}

func respondProblem(corrID string, status int, title, detail string) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(problem{Status: status, Title: title, Detail: detail})
	if err != nil {
		raw = []byte(`{"status":500,"title":"internal error"}`)
	}
	resp := respond(corrID, status, string(raw))
	resp.Headers["Content-Type"] = "application/problem+json"
	return resp
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "x-correlation-id") && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
