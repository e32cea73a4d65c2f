// Package pipeline implements the pipeline orchestrator: define a
// pipeline, create its stage jobs synchronously, then cooperatively
// execute them in order, propagating artifacts. Grounded on
// routers/pipeline.py's two-phase shape.
package pipeline

import (
	"context"
	"log"
	"strings"

	"github.com/mati2251/res/apperr"
	"github.com/mati2251/res/artifacts"
	"github.com/mati2251/res/jobs"
	"github.com/mati2251/res/runnerx"
)

// Stage describes one step of a pipeline.
type Stage struct {
	Name        string
	Image       string
	ScriptLines []string
	Artifacts   []string
}

// Orchestrator sequences stage jobs and their artifact hand-off.
type Orchestrator struct {
	jobs      *jobs.Repository
	runner    *runnerx.Runner
	artifacts *artifacts.Handler
}

// New returns an Orchestrator wired to the given Job Repository, Runner
// and Artifact Handler.
func New(repo *jobs.Repository, runner *runnerx.Runner, a *artifacts.Handler) *Orchestrator {
	return &Orchestrator{jobs: repo, runner: runner, artifacts: a}
}

// Create runs the synchronous phase: allocates, binds and queues a job
// per stage, in order, then returns their ids. The caller is expected to
// start Run in a detached goroutine once Create succeeds.
func (o *Orchestrator) Create(stages []Stage) ([]int64, error) {
	if len(stages) == 0 {
		return nil, apperr.New(apperr.KindInvalid, "pipeline must have at least one stage")
	}

	ids := make([]int64, 0, len(stages))
	for _, stage := range stages {
		id, err := o.jobs.Create()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInvalid, err, "allocating stage %q", stage.Name)
		}
		if err := o.jobs.BindImage(id, stage.Image, stage.Artifacts); err != nil {
			return nil, apperr.Wrap(apperr.KindInvalid, err, "binding image for stage %q", stage.Name)
		}
		script := strings.Join(stage.ScriptLines, "\n")
		if _, err := o.jobs.PutScript(id, []byte(script), ""); err != nil {
			return nil, apperr.Wrap(apperr.KindInvalid, err, "uploading script for stage %q", stage.Name)
		}
		// Persists "queueded" -- the +"ed" quirk applies here too, and the
		// list filter matches "queued" as a substring.
		if err := o.jobs.SetState(id, "queued"); err != nil {
			return nil, apperr.Wrap(apperr.KindInvalid, err, "queuing stage %q", stage.Name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Run executes the asynchronous phase: for each stage in order, start it
// and await completion, then hand off artifacts to the next stage. Stage
// N+1 never launches before stage N's child has exited. Any error aborts
// the remainder of the pipeline; already-created stage jobs remain
// queryable. ctx is checked between stages so a cancelled context (e.g.
// on daemon shutdown) stops the pipeline from starting its next stage,
// though it cannot interrupt a stage's child already in flight. Intended
// to be invoked via RunDetached so the creating request can return
// immediately.
func (o *Orchestrator) Run(ctx context.Context, ids []int64) error {
	for i, id := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := o.jobs.SetState(id, "start"); err != nil {
			return err
		}
		if _, err := o.runner.LaunchAndWait(id); err != nil {
			return err
		}
		if i+1 < len(ids) {
			if err := o.artifacts.Copy(id, ids[i+1]); err != nil {
				return err
			}
		}
	}
	return nil
}

// RunDetached starts Run in the background and logs any error instead of
// crashing the process. The creating HTTP handler calls this and returns
// promptly.
func (o *Orchestrator) RunDetached(ids []int64) {
	go func() {
		if err := o.Run(context.Background(), ids); err != nil {
			log.Printf("pipeline %v aborted: %v", ids, err)
		}
	}()
}
