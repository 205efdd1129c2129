package schemas

import (
	"time"

	"github.com/osbench/osbench/pkg/classify"
	"github.com/osbench/osbench/pkg/runstore"
)

// SubmitRunRequest is the request body to submit a run.
type SubmitRunRequest struct {
	Script     string `json:"script" doc:"Script content to execute"`
	ScriptType string `json:"script_type,omitempty" doc:"Script type: shell, powershell, batch, python, or a raw extension" example:"shell"`
	TargetOS   string `json:"target_os" doc:"Logical target OS identifier" example:"ubuntu-22.04"`
	Image      string `json:"image,omitempty" doc:"Explicit container image override; bypasses OS resolution"`
}

// RunResponse is a run record as exposed over the API.
type RunResponse struct {
	ID            string           `json:"id" doc:"Run ID"`
	TargetOS      string           `json:"target_os" doc:"Requested target OS"`
	Image         string           `json:"image" doc:"Resolved container image"`
	ContainerID   string           `json:"container_id,omitempty" doc:"Runtime handle of the environment"`
	Status        string           `json:"status" doc:"Run status" enum:"pending,running,completed,failed"`
	CreatedAt     string           `json:"created_at" doc:"Submission timestamp"`
	StartedAt     *string          `json:"started_at,omitempty" doc:"Environment start timestamp"`
	EndedAt       *string          `json:"ended_at,omitempty" doc:"Terminal transition timestamp"`
	ExitCode      *int             `json:"exit_code,omitempty" doc:"Process exit code (completed runs)"`
	Result        *classify.Result `json:"result,omitempty" doc:"Classifier verdict (completed runs)"`
	FailureReason string           `json:"failure_reason,omitempty" doc:"Cause of failure (failed runs)"`
}

// RunArtifact describes one uploaded artifact.
type RunArtifact struct {
	Key         string `json:"key" doc:"Storage key"`
	Filename    string `json:"filename" doc:"Artifact filename"`
	Size        int64  `json:"size" doc:"Size in bytes"`
	ContentType string `json:"content_type" doc:"MIME type"`
}

// ToRunResponse converts a record to its API shape.
func ToRunResponse(run *runstore.Run) RunResponse {
	resp := RunResponse{
		ID:            run.ID,
		TargetOS:      run.TargetOS,
		Image:         run.Image,
		ContainerID:   run.ContainerID,
		Status:        string(run.Status),
		CreatedAt:     run.CreatedAt.Format(time.RFC3339),
		ExitCode:      run.ExitCode,
		Result:        run.Result,
		FailureReason: run.FailureReason,
	}
	if run.StartedAt != nil {
		s := run.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if run.EndedAt != nil {
		e := run.EndedAt.Format(time.RFC3339)
		resp.EndedAt = &e
	}
	return resp
}
