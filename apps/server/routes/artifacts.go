package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/osbench/osbench/apps/server/schemas"
	"github.com/osbench/osbench/pkg/artifacts"
	"github.com/osbench/osbench/pkg/orchestrator"
	"github.com/osbench/osbench/pkg/runstore"
)

// presignedExpiry bounds how long an artifact download link stays valid.
const presignedExpiry = 15 * time.Minute

// ListArtifactsInput defines the input for listing a run's artifacts
type ListArtifactsInput struct {
	RunID string `path:"runId" doc:"Run ID"`
}

// ListArtifactsOutput is the response for listing a run's artifacts
type ListArtifactsOutput struct {
	Body struct {
		Artifacts []schemas.RunArtifact `json:"artifacts" doc:"Uploaded artifacts for the run"`
	}
}

// DownloadArtifactInput defines the input for downloading an artifact
type DownloadArtifactInput struct {
	RunID    string `path:"runId" doc:"Run ID"`
	Filename string `path:"filename" doc:"Artifact filename"`
}

// DownloadArtifactOutput carries the raw artifact bytes
type DownloadArtifactOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// ArtifactURLInput defines the input for generating a download URL
type ArtifactURLInput struct {
	RunID    string `path:"runId" doc:"Run ID"`
	Filename string `path:"filename" doc:"Artifact filename"`
}

// ArtifactURLOutput is the response carrying a presigned download URL
type ArtifactURLOutput struct {
	Body struct {
		URL       string `json:"url" doc:"Time-limited download URL"`
		ExpiresIn int    `json:"expires_in" doc:"URL lifetime in seconds"`
	}
}

// RegisterArtifacts registers artifact routes. store is nil when off-box
// storage is not configured; the routes then report 503.
func RegisterArtifacts(api huma.API, orch *orchestrator.Orchestrator, store artifacts.Store) {
	// List run artifacts
	huma.Register(api, huma.Operation{
		OperationID: "list-run-artifacts",
		Method:      http.MethodGet,
		Path:        "/api/runs/{runId}/artifacts",
		Summary:     "List run artifacts",
		Description: "List the artifacts uploaded to off-box storage for a run",
		Tags:        []string{"Artifacts"},
	}, func(ctx context.Context, input *ListArtifactsInput) (*ListArtifactsOutput, error) {
		if store == nil {
			return nil, huma.Error503ServiceUnavailable("artifact storage is not configured")
		}
		if _, err := orch.GetRun(input.RunID); err != nil {
			if errors.Is(err, runstore.ErrNotFound) {
				return nil, huma.Error404NotFound("run not found")
			}
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to read run: %v", err))
		}

		prefix := artifacts.RunPrefix(input.RunID)
		objects, err := store.List(ctx, prefix)
		if err != nil {
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to list artifacts: %v", err))
		}

		resp := &ListArtifactsOutput{}
		resp.Body.Artifacts = make([]schemas.RunArtifact, 0, len(objects))
		for _, obj := range objects {
			resp.Body.Artifacts = append(resp.Body.Artifacts, schemas.RunArtifact{
				Key:         obj.Key,
				Filename:    strings.TrimPrefix(obj.Key, prefix),
				Size:        obj.Size,
				ContentType: obj.ContentType,
			})
		}
		return resp, nil
	})

	// Direct artifact download
	huma.Register(api, huma.Operation{
		OperationID: "download-artifact",
		Method:      http.MethodGet,
		Path:        "/api/runs/{runId}/artifacts/{filename}",
		Summary:     "Download an artifact",
		Description: "Stream one run artifact directly from off-box storage",
		Tags:        []string{"Artifacts"},
	}, func(ctx context.Context, input *DownloadArtifactInput) (*DownloadArtifactOutput, error) {
		if store == nil {
			return nil, huma.Error503ServiceUnavailable("artifact storage is not configured")
		}

		rc, err := store.Download(ctx, artifacts.RunKey(input.RunID, input.Filename))
		if err != nil {
			if errors.Is(err, artifacts.ErrNotFound) {
				return nil, huma.Error404NotFound("artifact not found")
			}
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to download artifact: %v", err))
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to read artifact: %v", err))
		}

		return &DownloadArtifactOutput{
			ContentType: "application/octet-stream",
			Body:        data,
		}, nil
	})

	// Presigned artifact download URL
	huma.Register(api, huma.Operation{
		OperationID: "get-artifact-url",
		Method:      http.MethodGet,
		Path:        "/api/runs/{runId}/artifacts/{filename}/url",
		Summary:     "Get artifact download URL",
		Description: "Generate a time-limited download URL for one run artifact",
		Tags:        []string{"Artifacts"},
	}, func(ctx context.Context, input *ArtifactURLInput) (*ArtifactURLOutput, error) {
		if store == nil {
			return nil, huma.Error503ServiceUnavailable("artifact storage is not configured")
		}

		url, err := store.PresignedURL(ctx, artifacts.RunKey(input.RunID, input.Filename), presignedExpiry)
		if err != nil {
			if errors.Is(err, artifacts.ErrNotFound) {
				return nil, huma.Error404NotFound("artifact not found")
			}
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to presign artifact: %v", err))
		}

		resp := &ArtifactURLOutput{}
		resp.Body.URL = url
		resp.Body.ExpiresIn = int(presignedExpiry.Seconds())
		return resp, nil
	})
}
