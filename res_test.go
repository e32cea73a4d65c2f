package res

import (
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/mati2251/res/config"
)

func TestNewWiresAllCollaborators(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "images"), filepath.Join(dir, "jobs"))
	assert.NilError(t, c.EnsureDirs())

	assert.Equal(t, c.Runner.Binary, "apptainer")

	id, err := c.Jobs.Create()
	assert.NilError(t, err)

	etag, err := c.Images.Put("alpine", []byte("fake-sif-bytes"), "")
	assert.NilError(t, err)
	assert.Assert(t, etag != "")

	assert.NilError(t, c.Jobs.BindImage(id, "alpine", nil))
	_, err = c.Jobs.PutScript(id, []byte("echo hi"), "")
	assert.NilError(t, err)

	state, err := c.Jobs.State(id)
	assert.NilError(t, err)
	assert.Equal(t, state, "ready")
}

func TestWithRuntimeBinaryOverridesRunner(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "images"), filepath.Join(dir, "jobs"), WithRuntimeBinary("/usr/bin/singularity"))
	assert.Equal(t, c.Runner.Binary, "/usr/bin/singularity")
}

func TestNewFromConfigUsesConfiguredRoots(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		ImageRoot:     filepath.Join(dir, "images"),
		JobRoot:       filepath.Join(dir, "jobs"),
		RuntimeBinary: "apptainer",
	}
	c := NewFromConfig(cfg)
	assert.Equal(t, c.Store.ImageRoot, cfg.ImageRoot)
	assert.Equal(t, c.Store.JobRoot, cfg.JobRoot)
}
