package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/mati2251/res/artifacts"
	"github.com/mati2251/res/images"
	"github.com/mati2251/res/jobs"
	"github.com/mati2251/res/runnerx"
	"github.com/mati2251/res/store"
)

const fakeRuntimeScript = `#!/bin/sh
echo "ran: $@"
exit 0
`

func newTestOrchestrator(t *testing.T) (*Orchestrator, *jobs.Repository, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	fs := store.New(filepath.Join(dir, "images"), filepath.Join(dir, "jobs"))
	assert.NilError(t, fs.EnsureDirs())
	imgs := images.New(fs)
	repo := jobs.New(fs, imgs)
	runner := runnerx.New(fs, repo)

	binPath := filepath.Join(dir, "fakeapptainer")
	assert.NilError(t, os.WriteFile(binPath, []byte(fakeRuntimeScript), 0o755))
	runner.Binary = binPath

	h := artifacts.New(fs, repo)

	for _, name := range []string{"image-a", "image-b"} {
		_, err := imgs.Put(name, []byte("sif-bytes-"+name), "")
		assert.NilError(t, err)
	}

	return New(repo, runner, h), repo, fs
}

func TestCreateQueuesAllStages(t *testing.T) {
	o, repo, _ := newTestOrchestrator(t)

	stages := []Stage{
		{Name: "a", Image: "image-a", ScriptLines: []string{"echo one"}, Artifacts: []string{"out.txt"}},
		{Name: "b", Image: "image-b", ScriptLines: []string{"echo two"}, Artifacts: []string{"out.txt"}},
	}
	ids, err := o.Create(stages)
	assert.NilError(t, err)
	assert.Equal(t, len(ids), 2)

	for _, id := range ids {
		state, err := repo.State(id)
		assert.NilError(t, err)
		assert.Equal(t, state, "queueded")
	}

	matched, total, err := repo.List("queued", 0, 10)
	assert.NilError(t, err)
	assert.Equal(t, total, 2)
	assert.Equal(t, len(matched), 2)
}

func TestRunExecutesStagesSequentiallyAndPropagatesArtifacts(t *testing.T) {
	o, repo, fs := newTestOrchestrator(t)

	stages := []Stage{
		{Name: "a", Image: "image-a", ScriptLines: []string{"echo one"}, Artifacts: []string{"out.txt"}},
		{Name: "b", Image: "image-b", ScriptLines: []string{"echo two"}, Artifacts: []string{"out.txt"}},
	}
	ids, err := o.Create(stages)
	assert.NilError(t, err)

	root := fs.JobRootMount(ids[0])
	assert.NilError(t, os.MkdirAll(root, 0o755))
	assert.NilError(t, os.WriteFile(filepath.Join(root, "out.txt"), []byte("stage-a-output"), 0o644))

	assert.NilError(t, o.Run(context.Background(), ids))

	for _, id := range ids {
		job, err := repo.GetJob(id)
		assert.NilError(t, err)
		assert.Equal(t, job.State, jobs.Done, "job %d state", id)
	}

	dstArtifact := filepath.Join(fs.JobRootMount(ids[1]), "out.txt")
	b, err := os.ReadFile(dstArtifact)
	assert.NilError(t, err)
	assert.Equal(t, string(b), "stage-a-output")
}

func TestCreateRejectsEmptyPipeline(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	_, err := o.Create(nil)
	assert.ErrorContains(t, err, "at least one stage")
}
