package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/osbench/osbench/apps/server/schemas"
	"github.com/osbench/osbench/pkg/orchestrator"
	"github.com/osbench/osbench/pkg/runstore"
)

// SubmitRunInput defines the input for submitting a run
type SubmitRunInput struct {
	Body schemas.SubmitRunRequest
}

// SubmitRunOutput is the response for submitting a run
type SubmitRunOutput struct {
	Body schemas.RunResponse
}

// GetRunInput defines the input for getting a run
type GetRunInput struct {
	RunID string `path:"runId" doc:"Run ID"`
}

// GetRunOutput is the response for getting a run
type GetRunOutput struct {
	Body schemas.RunResponse
}

// ListRunsOutput is the response for listing runs
type ListRunsOutput struct {
	Body struct {
		Runs []schemas.RunResponse `json:"runs" doc:"All runs, newest first"`
	}
}

// GetRunLogsInput defines the input for getting run logs
type GetRunLogsInput struct {
	RunID string `path:"runId" doc:"Run ID"`
}

// GetRunLogsOutput is the response for getting run logs
type GetRunLogsOutput struct {
	Body struct {
		Logs string `json:"logs" doc:"Captured run output"`
	}
}

// PurgeRunInput defines the input for purging a run
type PurgeRunInput struct {
	RunID string `path:"runId" doc:"Run ID"`
}

// RegisterRuns registers run-related routes
func RegisterRuns(api huma.API, orch *orchestrator.Orchestrator) {
	// Submit run
	huma.Register(api, huma.Operation{
		OperationID: "submit-run",
		Method:      http.MethodPost,
		Path:        "/api/runs",
		Summary:     "Submit a new run",
		Description: "Submit a script for execution against the resolved target OS image. Returns the pending record immediately; the lifecycle runs asynchronously.",
		Tags:        []string{"Runs"},
	}, func(ctx context.Context, input *SubmitRunInput) (*SubmitRunOutput, error) {
		run, err := orch.Submit(ctx, orchestrator.SubmitRequest{
			Script:     input.Body.Script,
			ScriptType: input.Body.ScriptType,
			TargetOS:   input.Body.TargetOS,
			Image:      input.Body.Image,
		})
		if err != nil {
			if orchestrator.IsValidation(err) {
				return nil, huma.Error422UnprocessableEntity(err.Error())
			}
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to submit run: %v", err))
		}
		return &SubmitRunOutput{Body: schemas.ToRunResponse(run)}, nil
	})

	// List runs
	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/api/runs",
		Summary:     "List runs",
		Description: "Get all runs, newest first",
		Tags:        []string{"Runs"},
	}, func(ctx context.Context, input *struct{}) (*ListRunsOutput, error) {
		runs, err := orch.ListRuns()
		if err != nil {
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to list runs: %v", err))
		}
		resp := &ListRunsOutput{}
		resp.Body.Runs = make([]schemas.RunResponse, 0, len(runs))
		for _, run := range runs {
			resp.Body.Runs = append(resp.Body.Runs, schemas.ToRunResponse(run))
		}
		return resp, nil
	})

	// Get run
	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/api/runs/{runId}",
		Summary:     "Get run details",
		Description: "Get the record (and result, once completed) of a specific run",
		Tags:        []string{"Runs"},
	}, func(ctx context.Context, input *GetRunInput) (*GetRunOutput, error) {
		run, err := orch.GetRun(input.RunID)
		if err != nil {
			if errors.Is(err, runstore.ErrNotFound) {
				return nil, huma.Error404NotFound("run not found")
			}
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to read run: %v", err))
		}
		return &GetRunOutput{Body: schemas.ToRunResponse(run)}, nil
	})

	// Get run logs
	huma.Register(api, huma.Operation{
		OperationID: "get-run-logs",
		Method:      http.MethodGet,
		Path:        "/api/runs/{runId}/logs",
		Summary:     "Get run logs",
		Description: "Get the captured output of a run; prefers the durable entrypoint log over the raw stream dump",
		Tags:        []string{"Runs"},
	}, func(ctx context.Context, input *GetRunLogsInput) (*GetRunLogsOutput, error) {
		logs, err := orch.Logs(input.RunID)
		if err != nil {
			if errors.Is(err, runstore.ErrNotFound) {
				return nil, huma.Error404NotFound("run not found")
			}
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to read logs: %v", err))
		}
		resp := &GetRunLogsOutput{}
		resp.Body.Logs = logs
		return resp, nil
	})

	// Purge run
	huma.Register(api, huma.Operation{
		OperationID: "purge-run",
		Method:      http.MethodDelete,
		Path:        "/api/runs/{runId}",
		Summary:     "Purge a run",
		Description: "Remove a terminal run's record, workspace and uploaded artifacts. Runs are never purged automatically.",
		Tags:        []string{"Runs"},
	}, func(ctx context.Context, input *PurgeRunInput) (*struct{}, error) {
		if err := orch.Purge(ctx, input.RunID); err != nil {
			if errors.Is(err, runstore.ErrNotFound) {
				return nil, huma.Error404NotFound("run not found")
			}
			return nil, huma.Error409Conflict(fmt.Sprintf("failed to purge run: %v", err))
		}
		return &struct{}{}, nil
	})
}
