package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/osbench/osbench/pkg/artifacts"
	"github.com/osbench/osbench/pkg/classify"
	"github.com/osbench/osbench/pkg/engine"
	"github.com/osbench/osbench/pkg/images"
	"github.com/osbench/osbench/pkg/notify"
	"github.com/osbench/osbench/pkg/runstore"
	"github.com/osbench/osbench/pkg/workspace"
)

// streamChunkSize is the read granularity for the attach stream; each
// read becomes one log-chunk notification.
const streamChunkSize = 4096

// execute drives one run from pending to a terminal state. Any error or
// panic is converted into a failed terminal record here; nothing
// propagates past this boundary because the submitter has long returned.
func (o *Orchestrator) execute(ctx context.Context, run runstore.Run, req SubmitRequest) {
	handle := ""
	var ws *workspace.Workspace
	var streamed bytes.Buffer
	defer func() {
		if r := recover(); r != nil {
			o.fail(ctx, &run, handle, ws, streamed.Bytes(), fmt.Errorf("run lifecycle panicked: %v", r))
		}
	}()

	// launching: workspace + image are local decisions; no environment
	// exists yet, so failures need no destroy step.
	ws, err := o.workspaces.Prepare(run.ID, req.Script, req.scriptExtension(), images.IsWindows(run.TargetOS))
	if err != nil {
		o.fail(ctx, &run, "", nil, nil, err)
		return
	}

	handle, err = o.engine.CreateEnvironment(ctx, engine.CreateSpec{
		Image:      run.Image,
		Name:       "osbench-" + run.ID,
		Command:    ws.Target.Command(),
		WorkingDir: ws.Target.MountPath,
		Binds:      []string{ws.Path + ":" + ws.Target.MountPath},
		Env:        map[string]string{"OSBENCH_RUN_ID": run.ID},
	})
	if err != nil {
		o.fail(ctx, &run, "", ws, nil, err)
		return
	}

	run.ContainerID = handle
	if err := o.store.Save(&run); err != nil {
		o.fail(ctx, &run, handle, ws, nil, err)
		return
	}
	o.publish(ctx, notify.Event{Type: notify.EventEnvironmentCreated, RunID: run.ID, Run: snapshot(&run), Handle: handle})

	if err := o.engine.StartEnvironment(ctx, handle); err != nil {
		o.fail(ctx, &run, handle, ws, nil, err)
		return
	}

	now := time.Now().UTC()
	run.StartedAt = &now
	run.Status = runstore.StatusRunning
	if err := o.store.Save(&run); err != nil {
		o.fail(ctx, &run, handle, ws, nil, err)
		return
	}
	o.publish(ctx, notify.Event{Type: notify.EventEnvironmentStarted, RunID: run.ID, Run: snapshot(&run)})

	// streaming: consume the attach stream until it closes, forwarding
	// each chunk as it arrives. An early close is not fatal; the wait
	// below is the authoritative completion signal.
	stream, err := o.engine.AttachOutput(ctx, handle)
	if err != nil {
		o.fail(ctx, &run, handle, ws, nil, err)
		return
	}
	o.consume(ctx, &run, stream, &streamed)

	// awaiting-exit
	exitCode, err := o.engine.AwaitCompletion(ctx, handle)
	if err != nil {
		o.fail(ctx, &run, handle, ws, streamed.Bytes(), err)
		return
	}

	// classifying: the durable teed log wins when present and non-empty;
	// attach streaming can race environment startup on some runtimes and
	// silently deliver nothing.
	durable := o.persistOutputs(run.ID, ws, streamed.Bytes())
	captured := string(durable)
	if captured == "" {
		captured = streamed.String()
	}
	if captured == "" {
		captured = o.fetchLogs(ctx, handle)
	}
	verdict := classify.Classify(captured)

	code := int(exitCode)
	end := time.Now().UTC()
	run.ExitCode = &code
	run.Result = &verdict
	run.EndedAt = &end
	run.Status = runstore.StatusCompleted
	if err := o.store.Save(&run); err != nil {
		// The record is still running on disk; fall back to a failed
		// terminal write so it cannot dangle forever.
		o.fail(ctx, &run, handle, ws, streamed.Bytes(), fmt.Errorf("persisting final record: %w", err))
		return
	}
	if err := o.store.SaveResult(&run); err != nil {
		o.log.Warn("persisting result file failed", "run", run.ID, "err", err)
	}

	o.cleanup(ctx, &run, handle, durable, streamed.Bytes())
	o.publish(ctx, notify.Event{Type: notify.EventRunCompleted, RunID: run.ID, Run: snapshot(&run)})
}

// consume reads the attach stream to exhaustion, accumulating output and
// forwarding chunk notifications in arrival order.
func (o *Orchestrator) consume(ctx context.Context, run *runstore.Run, stream io.ReadCloser, sink *bytes.Buffer) {
	defer stream.Close()
	buf := make([]byte, streamChunkSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			sink.WriteString(chunk)
			o.publish(ctx, notify.Event{Type: notify.EventLogChunk, RunID: run.ID, Chunk: chunk})
		}
		if err != nil {
			if err != io.EOF {
				o.log.Warn("output stream closed early", "run", run.ID, "err", err)
			}
			return
		}
	}
}

// fetchLogs is the last-resort capture path via the runtime's log
// channel, used when both the durable log and the stream came up empty.
func (o *Orchestrator) fetchLogs(ctx context.Context, handle string) string {
	rc, err := o.engine.FetchLogs(ctx, handle)
	if err != nil {
		o.log.Warn("fetching environment logs failed", "handle", handle, "err", err)
		return ""
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		o.log.Warn("reading environment logs failed", "handle", handle, "err", err)
	}
	return string(data)
}

// persistOutputs copies whatever output survived into the results tree,
// so it outlives the workspace on both terminal paths: a failed run's
// captured output is often the only diagnostic there is. Returns the
// durable log contents for classification.
func (o *Orchestrator) persistOutputs(runID string, ws *workspace.Workspace, streamed []byte) []byte {
	var durable []byte
	if ws != nil {
		if p := ws.DurableLogPath(); p != "" {
			durable, _ = os.ReadFile(p)
		}
	}
	if len(durable) > 0 {
		if err := o.store.SaveOutput(runID, runstore.DurableLogName, durable); err != nil {
			o.log.Warn("persisting durable log failed", "run", runID, "err", err)
		}
	}
	if len(streamed) > 0 {
		if err := o.store.SaveOutput(runID, runstore.StreamLogName, streamed); err != nil {
			o.log.Warn("persisting stream dump failed", "run", runID, "err", err)
		}
	}
	return durable
}

// fail converts any lifecycle error into a failed terminal record,
// preserving whatever output was captured before the error. It never
// overwrites an already-terminal record: the store rejects the
// regression and the rejection is only logged.
func (o *Orchestrator) fail(ctx context.Context, run *runstore.Run, handle string, ws *workspace.Workspace, streamed []byte, cause error) {
	o.log.Error("run failed", "run", run.ID, "err", cause)

	// Destroy first so the entrypoint's teed log stops moving before it
	// is copied out.
	if handle != "" {
		if err := o.engine.DestroyEnvironment(ctx, handle); err != nil {
			o.log.Warn("environment destroy failed", "run", run.ID, "handle", handle, "err", err)
		}
	}

	durable := o.persistOutputs(run.ID, ws, streamed)

	end := time.Now().UTC()
	run.EndedAt = &end
	run.Status = runstore.StatusFailed
	run.FailureReason = cause.Error()
	if err := o.store.Save(run); err != nil {
		o.log.Error("persisting failed record", "run", run.ID, "err", err)
	}

	o.uploadArtifacts(ctx, run, durable, streamed)

	if err := o.workspaces.Teardown(run.ID); err != nil {
		o.log.Warn("workspace teardown failed", "run", run.ID, "err", err)
	}

	o.publish(ctx, notify.Event{Type: notify.EventRunFailed, RunID: run.ID, Run: snapshot(run), Error: cause.Error()})
}

// cleanup releases resources after a completed run: environment destroy
// and workspace teardown are best-effort, and configured artifact upload
// happens before the workspace goes away.
func (o *Orchestrator) cleanup(ctx context.Context, run *runstore.Run, handle string, durable, streamed []byte) {
	if err := o.engine.DestroyEnvironment(ctx, handle); err != nil {
		o.log.Warn("environment destroy failed", "run", run.ID, "handle", handle, "err", err)
	}

	o.uploadArtifacts(ctx, run, durable, streamed)

	if err := o.workspaces.Teardown(run.ID); err != nil {
		o.log.Warn("workspace teardown failed", "run", run.ID, "err", err)
	}
}

// uploadArtifacts pushes the run's outputs to off-box storage when
// configured: the durable log, the raw stream dump and the final record,
// on every terminal transition. Failures are logged; the local record
// store already holds everything.
func (o *Orchestrator) uploadArtifacts(ctx context.Context, run *runstore.Run, durable, streamed []byte) {
	if o.artifacts == nil {
		return
	}

	if len(durable) > 0 {
		key := artifacts.RunKey(run.ID, runstore.DurableLogName)
		if _, err := o.artifacts.Upload(ctx, key, bytes.NewReader(durable), "text/plain", map[string]string{"run_id": run.ID}); err != nil {
			o.log.Warn("uploading run log failed", "run", run.ID, "err", err)
		}
	}
	if len(streamed) > 0 {
		key := artifacts.RunKey(run.ID, runstore.StreamLogName)
		if _, err := o.artifacts.Upload(ctx, key, bytes.NewReader(streamed), "text/plain", map[string]string{"run_id": run.ID}); err != nil {
			o.log.Warn("uploading stream dump failed", "run", run.ID, "err", err)
		}
	}

	record, err := json.MarshalIndent(run, "", "  ")
	if err == nil {
		key := artifacts.RunKey(run.ID, "run.json")
		if _, err := o.artifacts.Upload(ctx, key, bytes.NewReader(record), "application/json", map[string]string{"run_id": run.ID}); err != nil {
			o.log.Warn("uploading run record failed", "run", run.ID, "err", err)
		}
	}
}
