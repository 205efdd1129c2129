package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerEngine implements Engine against the Docker daemon.
type DockerEngine struct {
	cli *client.Client
}

// NewDockerEngine creates a driver from the environment (DOCKER_HOST and
// friends), negotiating the API version with the daemon.
func NewDockerEngine() (*DockerEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &DockerEngine{cli: cli}, nil
}

// Close releases the underlying client connection.
func (e *DockerEngine) Close() error {
	return e.cli.Close()
}

func (e *DockerEngine) CreateEnvironment(ctx context.Context, spec CreateSpec) (string, error) {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Command,
		WorkingDir:   spec.WorkingDir,
		Env:          env,
		AttachStdout: true,
		AttachStderr: true,
	}
	hostCfg := &container.HostConfig{
		Binds: spec.Binds,
	}

	resp, err := e.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", wrapDockerErr("create", err, true)
	}
	return resp.ID, nil
}

func (e *DockerEngine) StartEnvironment(ctx context.Context, handle string) error {
	if err := e.cli.ContainerStart(ctx, handle, container.StartOptions{}); err != nil {
		return wrapDockerErr("start", err, false)
	}
	return nil
}

func (e *DockerEngine) AttachOutput(ctx context.Context, handle string) (io.ReadCloser, error) {
	resp, err := e.cli.ContainerAttach(ctx, handle, container.AttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
		Logs:   true, // include output produced before the attach landed
	})
	if err != nil {
		return nil, wrapDockerErr("attach", err, false)
	}

	// The attach stream multiplexes stdout/stderr in the daemon's frame
	// format; demux both into a single plain-text pipe.
	pr, pw := io.Pipe()
	go func() {
		_, copyErr := stdcopy.StdCopy(pw, pw, resp.Reader)
		pw.CloseWithError(copyErr)
		resp.Close()
	}()
	return pr, nil
}

func (e *DockerEngine) AwaitCompletion(ctx context.Context, handle string) (int64, error) {
	statusCh, errCh := e.cli.ContainerWait(ctx, handle, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, wrapDockerErr("wait", err, false)
	case status := <-statusCh:
		if status.Error != nil {
			return 0, newError("wait", CodeUnknown, fmt.Errorf("%s", status.Error.Message))
		}
		return status.StatusCode, nil
	case <-ctx.Done():
		return 0, wrapDockerErr("wait", ctx.Err(), false)
	}
}

func (e *DockerEngine) FetchLogs(ctx context.Context, handle string) (io.ReadCloser, error) {
	rc, err := e.cli.ContainerLogs(ctx, handle, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return nil, wrapDockerErr("logs", err, false)
	}

	pr, pw := io.Pipe()
	go func() {
		_, copyErr := stdcopy.StdCopy(pw, pw, rc)
		pw.CloseWithError(copyErr)
		rc.Close()
	}()
	return pr, nil
}

func (e *DockerEngine) DestroyEnvironment(ctx context.Context, handle string) error {
	err := e.cli.ContainerRemove(ctx, handle, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !errdefs.IsNotFound(err) {
		return wrapDockerErr("remove", err, false)
	}
	return nil
}

// wrapDockerErr maps daemon error classes onto stable codes. onCreate
// distinguishes "image not found" from "container not found": the only
// not-found a create can hit is the image.
func wrapDockerErr(op string, err error, onCreate bool) error {
	switch {
	case err == nil:
		return nil
	case client.IsErrConnectionFailed(err):
		return newError(op, CodeDaemonUnreachable, err)
	case errdefs.IsNotFound(err) && onCreate:
		return newError(op, CodeImageNotFound, err)
	case errdefs.IsNotFound(err):
		return newError(op, CodeNotFound, err)
	case errdefs.IsConflict(err):
		return newError(op, CodeNameConflict, err)
	case errdefs.IsUnauthorized(err), errdefs.IsForbidden(err):
		return newError(op, CodePermissionDenied, err)
	default:
		return newError(op, CodeUnknown, err)
	}
}

var _ Engine = (*DockerEngine)(nil)
