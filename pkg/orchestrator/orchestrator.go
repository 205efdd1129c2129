// Package orchestrator sequences one run's lifecycle: workspace
// preparation, environment creation, output streaming, exit wait,
// classification and record persistence. Every submitted run executes as
// an independent goroutine; the record store guarantees each run ends in
// exactly one terminal status even when the environment misbehaves.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/osbench/osbench/pkg/artifacts"
	"github.com/osbench/osbench/pkg/engine"
	"github.com/osbench/osbench/pkg/images"
	"github.com/osbench/osbench/pkg/notify"
	"github.com/osbench/osbench/pkg/olog"
	"github.com/osbench/osbench/pkg/runstore"
	"github.com/osbench/osbench/pkg/workspace"
)

// SubmitRequest is the request-layer input for one run.
type SubmitRequest struct {
	Script     string // script content, required
	ScriptType string // "shell", "powershell", "batch" or a raw extension
	TargetOS   string // logical OS identifier, required
	Image      string // explicit image override, optional
}

func (r *SubmitRequest) validate() error {
	if strings.TrimSpace(r.Script) == "" {
		return missing("script")
	}
	if strings.TrimSpace(r.TargetOS) == "" {
		return missing("target_os")
	}
	return nil
}

// scriptExtension maps the declared script type to a file extension.
// Unknown types fall through to the target's platform default.
func (r *SubmitRequest) scriptExtension() string {
	switch strings.ToLower(strings.TrimSpace(r.ScriptType)) {
	case "shell", "sh", "bash":
		return ".sh"
	case "powershell", "ps1":
		return ".ps1"
	case "batch", "bat", "cmd":
		return ".bat"
	case "python", "py":
		return ".py"
	default:
		if strings.HasPrefix(r.ScriptType, ".") {
			return r.ScriptType
		}
		return ""
	}
}

// Orchestrator coordinates the run lifecycle components.
type Orchestrator struct {
	engine       engine.Engine
	store        *runstore.FileStore
	workspaces   *workspace.Manager
	notifier     notify.Notifier
	artifacts    artifacts.Store
	defaultImage string
	log          *olog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets the notification sink for lifecycle events.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithArtifacts enables off-box upload of run outputs at terminal state.
func WithArtifacts(s artifacts.Store) Option {
	return func(o *Orchestrator) { o.artifacts = s }
}

// WithDefaultImage sets an operator-level image used for submissions
// that name no explicit image, bypassing the target-OS resolution table.
func WithDefaultImage(image string) Option {
	return func(o *Orchestrator) { o.defaultImage = image }
}

// WithLogger sets the logger.
func WithLogger(l *olog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New creates an orchestrator over the given driver, record store and
// workspace manager.
func New(eng engine.Engine, store *runstore.FileStore, workspaces *workspace.Manager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:     eng,
		store:      store,
		workspaces: workspaces,
		notifier:   notify.Discard{},
		log:        olog.NewDefault(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit validates the request, persists the initial pending record and
// returns it immediately; the rest of the lifecycle runs asynchronously.
// The record exists even if the environment never starts.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*runstore.Run, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	// UUIDv7 so run ids sort lexicographically by creation time.
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating run id: %w", err)
	}

	// Request image wins, then the operator default, then the
	// target-OS resolution table.
	override := req.Image
	if override == "" {
		override = o.defaultImage
	}

	run := &runstore.Run{
		ID:        id.String(),
		TargetOS:  req.TargetOS,
		Image:     images.Resolve(req.TargetOS, override),
		Status:    runstore.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.Save(run); err != nil {
		return nil, fmt.Errorf("persisting initial record: %w", err)
	}

	o.publish(ctx, notify.Event{Type: notify.EventRunStarted, RunID: run.ID, Run: snapshot(run)})

	// The lifecycle outlives the submitting request.
	go o.execute(context.WithoutCancel(ctx), *run, req)

	return snapshot(run), nil
}

// GetRun returns the record for a run id.
func (o *Orchestrator) GetRun(id string) (*runstore.Run, error) {
	return o.store.Get(id)
}

// ListRuns returns all run records, newest first.
func (o *Orchestrator) ListRuns() ([]*runstore.Run, error) {
	return o.store.List()
}

// Logs returns a run's captured output, preferring the durable
// entrypoint log over the raw stream dump.
func (o *Orchestrator) Logs(id string) (string, error) {
	return o.store.Logs(id)
}

// Purge removes a terminal run's record, workspace and uploaded
// artifacts. Runs are never purged automatically; this is the explicit
// collaborator operation.
func (o *Orchestrator) Purge(ctx context.Context, id string) error {
	run, err := o.store.Get(id)
	if err != nil {
		return err
	}
	if !run.Status.Terminal() {
		return fmt.Errorf("run %s is still %s", id, run.Status)
	}

	if o.artifacts != nil {
		if err := o.artifacts.DeletePrefix(ctx, artifacts.RunPrefix(id)); err != nil {
			o.log.Warn("purging uploaded artifacts failed", "run", id, "err", err)
		}
	}
	if err := o.workspaces.Teardown(id); err != nil {
		o.log.Warn("workspace teardown failed during purge", "run", id, "err", err)
	}
	return o.store.Delete(id)
}

// publish delivers an event, logging (never escalating) failures.
func (o *Orchestrator) publish(ctx context.Context, ev notify.Event) {
	if err := o.notifier.Publish(ctx, ev); err != nil {
		o.log.Warn("notification delivery failed", "run", ev.RunID, "event", string(ev.Type), "err", err)
	}
}

// snapshot clones a record so callers and the lifecycle goroutine never
// share a mutable Run.
func snapshot(run *runstore.Run) *runstore.Run {
	c := *run
	return &c
}
