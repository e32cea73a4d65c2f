// Package res aggregates the execution core -- storage, images, jobs, the
// runner, artifacts and pipelines -- behind a single Core facade,
// following the Client/Option pattern in client.go: a struct of
// collaborators with sane defaults, mutated at construction time by
// functional options.
package res

import (
	"github.com/mati2251/res/artifacts"
	"github.com/mati2251/res/config"
	"github.com/mati2251/res/images"
	"github.com/mati2251/res/jobs"
	"github.com/mati2251/res/pipeline"
	"github.com/mati2251/res/runnerx"
	"github.com/mati2251/res/store"
)

// Core wires together the on-disk store, image store, job repository,
// runner, artifact handler and pipeline orchestrator.
type Core struct {
	Store     *store.Store
	Images    *images.Store
	Jobs      *jobs.Repository
	Runner    *runnerx.Runner
	Artifacts *artifacts.Handler
	Pipeline  *pipeline.Orchestrator
}

// Option mutates a Core at construction time.
type Option func(*Core)

// WithRuntimeBinary overrides the container runtime binary the Runner
// invokes (default "apptainer").
func WithRuntimeBinary(binary string) Option {
	return func(c *Core) {
		c.Runner.Binary = binary
	}
}

// New builds a Core rooted at the given image and job directories. It
// does not create the directories; call EnsureDirs.
func New(imageRoot, jobRoot string, opts ...Option) *Core {
	fs := store.New(imageRoot, jobRoot)
	imgs := images.New(fs)
	repo := jobs.New(fs, imgs)
	runner := runnerx.New(fs, repo)
	a := artifacts.New(fs, repo)
	p := pipeline.New(repo, runner, a)

	c := &Core{
		Store:     fs,
		Images:    imgs,
		Jobs:      repo,
		Runner:    runner,
		Artifacts: a,
		Pipeline:  p,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewFromConfig builds a Core from a loaded config.Config.
func NewFromConfig(cfg config.Config) *Core {
	return New(cfg.ImageRoot, cfg.JobRoot, WithRuntimeBinary(cfg.RuntimeBinary))
}

// EnsureDirs creates the on-disk image and job roots if absent.
func (c *Core) EnsureDirs() error {
	return c.Store.EnsureDirs()
}
