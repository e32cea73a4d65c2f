// Package jobs implements the job repository and its state machine: CRUD
// over jobs, image/script binding with optimistic concurrency, and the
// state projection rule. Grounded on utils/job.py (the Job class) and
// routers/jobs.py, and on job.go for the general shape of a small
// aggregate type with a backing store.
package jobs

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mati2251/res/apperr"
	"github.com/mati2251/res/digest"
	"github.com/mati2251/res/images"
	"github.com/mati2251/res/store"
)

// NotReady, Ready and Done are the non-verb-derived state labels.
// "started"/"stopped" are produced by Repository.SetState.
const (
	NotReady = "not ready"
	Ready    = "ready"
	Done     = "done"
)

// NoExitCode is the sentinel reported before any run has completed.
const NoExitCode = -1

// Job is the projection returned by GetJob, mirroring the external `Image`
// DTO: {id, state, script, exit_code, image, artifacts}.
type Job struct {
	ID        int64    `json:"id"`
	State     string   `json:"state"`
	Script    string   `json:"script"`
	ExitCode  int      `json:"exit_code"`
	Image     string   `json:"image"`
	Artifacts []string `json:"artifacts"`
}

// Repository implements the Job Repository operations over a *store.Store,
// validating image bindings against an *images.Store.
type Repository struct {
	fs     *store.Store
	images *images.Store
}

// New returns a Repository backed by fs, validating bound images against
// imgs.
func New(fs *store.Store, imgs *images.Store) *Repository {
	return &Repository{fs: fs, images: imgs}
}

// Create allocates the next job id and its on-disk directory.
func (r *Repository) Create() (int64, error) {
	id, err := r.fs.NextJobID()
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, err, "allocating job id")
	}
	if err := r.fs.CreateJobDir(id); err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, err, "creating job %d directory", id)
	}
	return id, nil
}

func (r *Repository) requireJobDir(id int64) error {
	if !store.Exists(r.fs.JobDir(id)) {
		return apperr.New(apperr.KindNotFound, "job %d not found", id)
	}
	return nil
}

// BindImage validates that image name exists, replaces the job's
// image.sif symlink and records the binding, optionally replacing the
// declared artifact list.
func (r *Repository) BindImage(id int64, name string, artifacts []string) error {
	if err := r.requireJobDir(id); err != nil {
		return err
	}
	if _, err := r.images.Properties(name); err != nil {
		return apperr.Wrap(apperr.KindNotFound, err, "image %q not found", name)
	}

	link := r.fs.JobImageLink(id)
	_ = os.Remove(link)
	if err := os.Symlink(r.fs.ImagePath(name), link); err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "linking image %q to job %d", name, id)
	}

	props := r.fs.JobProperties(id)
	if err := r.fs.SetAttr(props, store.AttrImage, name); err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "recording image binding for job %d", id)
	}
	if artifacts != nil {
		if err := r.fs.SetAttr(props, store.AttrArtifacts, strings.Join(artifacts, ",")); err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "recording artifacts for job %d", id)
		}
	}
	return nil
}

// PutScript stores bytes as the job's script, enforcing the same
// optimistic-concurrency rule as images.Store.Put against the script's own
// hash attribute, and marks the file executable.
func (r *Repository) PutScript(id int64, data []byte, clientETag string) (etag string, err error) {
	if err := r.requireJobDir(id); err != nil {
		return "", err
	}

	path := r.fs.JobScript(id)
	if store.Exists(path) {
		current, ok, err := r.fs.GetAttr(path, store.AttrHash)
		if err != nil {
			return "", apperr.Wrap(apperr.KindInternal, err, "reading script etag for job %d", id)
		}
		if ok {
			if clientETag == "" {
				return current, apperr.Wrap(apperr.KindPreconditionRequired, nil, "etag required, current is %s", current)
			}
			if !digest.Equal(clientETag, current) {
				return "", apperr.Wrap(apperr.KindPreconditionFailed, nil, "etag mismatch: have %s", current)
			}
		}
	}

	if err := os.WriteFile(path, data, 0o755); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err, "writing script for job %d", id)
	}
	newETag := digest.OfBytes(data)
	if err := r.fs.SetAttr(path, store.AttrHash, newETag); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err, "setting script hash for job %d", id)
	}
	return newETag, nil
}

// GetScript returns the job's script text.
func (r *Repository) GetScript(id int64) ([]byte, error) {
	if err := r.requireJobDir(id); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(r.fs.JobScript(id))
	if os.IsNotExist(err) {
		return nil, apperr.New(apperr.KindNotFound, "job %d has no script", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "reading script for job %d", id)
	}
	return b, nil
}

// GetScriptETag returns the current hash of the job's script.
func (r *Repository) GetScriptETag(id int64) (string, error) {
	if err := r.requireJobDir(id); err != nil {
		return "", err
	}
	v, ok, err := r.fs.GetAttr(r.fs.JobScript(id), store.AttrHash)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err, "reading script etag for job %d", id)
	}
	if !ok {
		return "", apperr.New(apperr.KindNotFound, "job %d has no script", id)
	}
	return v, nil
}

// State returns the projected state of the job, without assembling the
// full Job projection.
func (r *Repository) State(id int64) (string, error) {
	if err := r.requireJobDir(id); err != nil {
		return "", err
	}
	return r.projectState(id), nil
}

func (r *Repository) projectState(id int64) string {
	hasImage := store.Exists(r.fs.JobImageLink(id))
	hasScript := store.Exists(r.fs.JobScript(id))
	if !hasImage || !hasScript {
		return NotReady
	}
	v, ok, err := r.fs.GetAttr(r.fs.JobProperties(id), store.AttrState)
	if err != nil || !ok || v == "" {
		return Ready
	}
	return v
}

// SetState normalizes verb into a persisted label by appending "ed" (e.g.
// "start" -> "started", "queued" -> "queueded"). It is the mechanism both
// the external start/stop interface and the pipeline orchestrator's
// "queued" marking use.
func (r *Repository) SetState(id int64, verb string) error {
	if err := r.requireJobDir(id); err != nil {
		return err
	}
	current := r.projectState(id)
	if current == NotReady {
		return apperr.New(apperr.KindInvalid, "job %d is not ready", id)
	}
	return r.fs.SetAttr(r.fs.JobProperties(id), store.AttrState, verb+"ed")
}

// MarkDone is called by the runner after a run exits, writing the
// terminal state label and exit code.
func (r *Repository) MarkDone(id int64, exitCode int) error {
	props := r.fs.JobProperties(id)
	if err := r.fs.SetAttr(props, store.AttrExitCode, strconv.Itoa(exitCode)); err != nil {
		return err
	}
	return r.fs.SetAttr(props, store.AttrState, Done)
}

// ExitCode returns the job's last recorded exit code, or NoExitCode if no
// run has completed.
func (r *Repository) ExitCode(id int64) (int, error) {
	if err := r.requireJobDir(id); err != nil {
		return 0, err
	}
	v, ok, err := r.fs.GetAttr(r.fs.JobProperties(id), store.AttrExitCode)
	if err != nil || !ok || v == "" {
		return NoExitCode, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return NoExitCode, nil
	}
	return n, nil
}

// Artifacts returns the job's declared artifact paths, in declaration
// order, or an empty slice if none were declared.
func (r *Repository) Artifacts(id int64) ([]string, error) {
	if err := r.requireJobDir(id); err != nil {
		return nil, err
	}
	v, ok, err := r.fs.GetAttr(r.fs.JobProperties(id), store.AttrArtifacts)
	if err != nil || !ok || v == "" {
		return []string{}, nil
	}
	return strings.Split(v, ","), nil
}

// Image returns the name of the job's bound image, or "" if unbound.
func (r *Repository) Image(id int64) (string, error) {
	if err := r.requireJobDir(id); err != nil {
		return "", err
	}
	v, _, err := r.fs.GetAttr(r.fs.JobProperties(id), store.AttrImage)
	if err != nil {
		return "", nil
	}
	return v, nil
}

// GetJob assembles the full projection for id, mirroring the external
// Image DTO. If the job has no script yet, the projected state is always
// NotReady and Script is empty.
func (r *Repository) GetJob(id int64) (Job, error) {
	if err := r.requireJobDir(id); err != nil {
		return Job{}, err
	}
	exitCode, _ := r.ExitCode(id)
	artifacts, _ := r.Artifacts(id)
	image, _ := r.Image(id)

	var script string
	if b, err := os.ReadFile(r.fs.JobScript(id)); err == nil {
		script = strings.TrimSpace(string(b))
	}

	return Job{
		ID:        id,
		State:     r.projectState(id),
		Script:    script,
		ExitCode:  exitCode,
		Image:     image,
		Artifacts: artifacts,
	}, nil
}

// List returns jobs whose id-directory is numeric, ascending by id, with
// an optional case-insensitive substring filter on projected state.
func (r *Repository) List(state string, skip, limit int) ([]Job, int, error) {
	if skip < 0 {
		return nil, 0, apperr.New(apperr.KindInvalid, "skip must be >= 0")
	}
	if limit <= 0 {
		return nil, 0, apperr.New(apperr.KindInvalid, "limit must be > 0")
	}

	entries, err := os.ReadDir(r.fs.JobRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return []Job{}, 0, nil
		}
		return nil, 0, apperr.Wrap(apperr.KindInternal, err, "listing jobs")
	}

	var ids []int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	filter := strings.ToLower(state)
	var matched []Job
	for _, id := range ids {
		j, err := r.GetJob(id)
		if err != nil {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(j.State), filter) {
			continue
		}
		matched = append(matched, j)
	}
	total := len(matched)

	if skip >= total {
		return []Job{}, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return matched[skip:end], total, nil
}
