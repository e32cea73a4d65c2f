// Package runnerx implements the runner: launch the container runtime as
// an asynchronous child against a ready job, capture its combined output,
// and record exit code and terminal state via the job repository.
// Grounded on utils/job.py's launch()/wait() shell-pipeline shape, and on
// docker/runner.go for the general shape of an async job handle with an
// error channel.
package runnerx

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	perrors "github.com/pkg/errors"

	"github.com/mati2251/res/apperr"
	"github.com/mati2251/res/jobs"
	"github.com/mati2251/res/store"
)

// DefaultRuntimeBinary is the container runtime invoked in exec mode,
// overridable via Runner.Binary (see config.Config.RuntimeBinary).
const DefaultRuntimeBinary = "apptainer"

// Runner launches job scripts inside their bound images via a rootless
// container runtime.
type Runner struct {
	fs     *store.Store
	jobs   *jobs.Repository
	Binary string // defaults to DefaultRuntimeBinary when empty
}

// New returns a Runner backed by fs and repo, using the default runtime
// binary.
func New(fs *store.Store, repo *jobs.Repository) *Runner {
	return &Runner{fs: fs, jobs: repo, Binary: DefaultRuntimeBinary}
}

// Handle is returned by Launch: the spawned child and the log file it
// writes to, mirroring the Python original's (process, log_file) pair.
type Handle struct {
	cmd     *exec.Cmd
	logFile *os.File
	jobID   int64
	runner  *Runner
}

// Launch constructs and starts the shell pipeline for a ready job. It
// fails synchronously (no child spawned) if the script or bound image is
// missing.
func (r *Runner) Launch(id int64) (*Handle, error) {
	scriptPath := r.fs.JobScript(id)
	if !store.Exists(scriptPath) {
		return nil, apperr.New(apperr.KindNotFound, "script_not_found for job %d", id)
	}
	imagePath := r.fs.JobImageLink(id)
	if !store.Exists(imagePath) {
		return nil, apperr.New(apperr.KindNotFound, "image_not_found for job %d", id)
	}

	overlay := r.fs.JobOverlay(id)
	if err := os.MkdirAll(overlay, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "preparing overlay for job %d", id)
	}
	rootMount := r.fs.JobRootMount(id)
	if err := os.MkdirAll(rootMount, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "preparing root mount for job %d", id)
	}

	binary := r.Binary
	if binary == "" {
		binary = DefaultRuntimeBinary
	}

	shellCmd := fmt.Sprintf(
		"%s exec -C --fakeroot --bind %s --bind %s:/root/ --overlay %s %s %s",
		binary, scriptPath, rootMount, overlay, imagePath, scriptPath,
	)

	logPath := r.fs.JobLog(id)
	logFile, err := os.Create(logPath) // truncate-on-open
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "opening log for job %d", id)
	}

	cmd := exec.Command("sh", "-c", shellCmd)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, apperr.Wrap(apperr.KindInternal, perrors.Wrap(err, "starting container runtime"), "launching job %d", id)
	}

	return &Handle{cmd: cmd, logFile: logFile, jobID: id, runner: r}, nil
}

// Wait blocks until the child exits, then records its exit code and the
// terminal "done" state via the job repository. Runtime errors (runtime
// binary absent, mount failure) are reflected only in the exit code and
// job.log; Wait itself does not fail for them.
func (h *Handle) Wait() (exitCode int, err error) {
	defer h.logFile.Close()

	waitErr := h.cmd.Wait()
	exitCode = exitCodeOf(waitErr)

	if err := h.runner.jobs.MarkDone(h.jobID, exitCode); err != nil {
		return exitCode, apperr.Wrap(apperr.KindInternal, err, "recording completion of job %d", h.jobID)
	}
	return exitCode, nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// LaunchAndWait launches job id and blocks until completion, returning its
// final exit code. It mirrors the Python original's launch_and_wait, used
// by the pipeline orchestrator which always awaits a stage before moving
// to the next.
func (r *Runner) LaunchAndWait(id int64) (int, error) {
	h, err := r.Launch(id)
	if err != nil {
		return 0, err
	}
	return h.Wait()
}
