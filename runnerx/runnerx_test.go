package runnerx

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/mati2251/res/images"
	"github.com/mati2251/res/jobs"
	"github.com/mati2251/res/store"
)

// fakeRuntimeScript is a stand-in for apptainer: it ignores every flag, writes a
// marker line and exits with the code given in $FAKE_EXIT.
const fakeRuntimeScript = `#!/bin/sh
echo "ran: $@"
exit "${FAKE_EXIT:-0}"
`

func newTestRunner(t *testing.T, exitCode int) (*Runner, *jobs.Repository, int64) {
	t.Helper()
	dir := t.TempDir()
	fs := store.New(filepath.Join(dir, "images"), filepath.Join(dir, "jobs"))
	assert.NilError(t, fs.EnsureDirs())
	imgs := images.New(fs)
	repo := jobs.New(fs, imgs)

	_, err := imgs.Put("alpine", []byte("sif-bytes"), "")
	assert.NilError(t, err)
	id, err := repo.Create()
	assert.NilError(t, err)
	assert.NilError(t, repo.BindImage(id, "alpine", []string{"out.txt"}))
	_, err = repo.PutScript(id, []byte("echo hi"), "")
	assert.NilError(t, err)

	binPath := filepath.Join(dir, "fakeapptainer")
	assert.NilError(t, os.WriteFile(binPath, []byte(fakeRuntimeScript), 0o755))
	os.Setenv("FAKE_EXIT", strconv.Itoa(exitCode))

	r := New(fs, repo)
	r.Binary = binPath
	return r, repo, id
}

func TestLaunchAndWaitRecordsExitCodeAndDone(t *testing.T) {
	r, repo, id := newTestRunner(t, 3)
	defer os.Unsetenv("FAKE_EXIT")

	exitCode, err := r.LaunchAndWait(id)
	assert.NilError(t, err)
	assert.Equal(t, exitCode, 3)

	job, err := repo.GetJob(id)
	assert.NilError(t, err)
	assert.Equal(t, job.State, jobs.Done)
	assert.Equal(t, job.ExitCode, 3)
}

func TestLaunchMissingScriptFailsSynchronously(t *testing.T) {
	dir := t.TempDir()
	fs := store.New(filepath.Join(dir, "images"), filepath.Join(dir, "jobs"))
	assert.NilError(t, fs.EnsureDirs())
	imgs := images.New(fs)
	repo := jobs.New(fs, imgs)
	id, err := repo.Create()
	assert.NilError(t, err)

	r := New(fs, repo)
	_, err = r.Launch(id)
	assert.ErrorContains(t, err, "script_not_found")
}

func TestLogCapturesRuntimeOutput(t *testing.T) {
	r, _, id := newTestRunner(t, 0)
	defer os.Unsetenv("FAKE_EXIT")

	_, err := r.LaunchAndWait(id)
	assert.NilError(t, err)

	b, err := os.ReadFile(r.fs.JobLog(id))
	assert.NilError(t, err)
	assert.Assert(t, len(b) > 0)
}
