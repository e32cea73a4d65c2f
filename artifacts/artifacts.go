// Package artifacts implements the artifact handler: enumerate, archive,
// and hard-link declared output files living under a job's root/ mount.
// Grounded on get_artifacts / get_artifacts_raw / cp_artifacts, and on
// filesystem.go for the general shape of walking and zipping a directory
// tree.
package artifacts

import (
	"archive/zip"
	"bytes"
	"net/http"
	"os"
	"path/filepath"

	"github.com/mati2251/res/apperr"
	"github.com/mati2251/res/jobs"
	"github.com/mati2251/res/store"
)

// File describes one artifact as returned by List.
type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Handler implements the Artifact Handler operations.
type Handler struct {
	fs   *store.Store
	jobs *jobs.Repository
}

// New returns a Handler backed by fs, reading artifact declarations from
// repo.
func New(fs *store.Store, repo *jobs.Repository) *Handler {
	return &Handler{fs: fs, jobs: repo}
}

// List returns {name, size, type} (type being the detected MIME type) for
// every declared artifact of job
// id that exists on disk; missing declarations are silently omitted.
func (h *Handler) List(id int64) ([]File, error) {
	declared, root, err := h.declaredArtifacts(id)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(declared))
	for _, name := range declared {
		path := filepath.Join(root, name)
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, File{Name: name, Size: fi.Size(), Type: detectMIME(path)})
	}
	return files, nil
}

// Archive produces a deflate-compressed ZIP in memory containing every
// existing declared artifact under its declared name.
func (h *Handler) Archive(id int64) ([]byte, error) {
	declared, root, err := h.declaredArtifacts(id)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range declared {
		path := filepath.Join(root, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue // declared-but-missing artifacts are never invented
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "archiving job %d", id)
		}
		if _, err := w.Write(data); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "archiving job %d", id)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "closing archive for job %d", id)
	}
	return buf.Bytes(), nil
}

// Copy hard-links every declared artifact of srcID into dstID's root/,
// creating parent directories as needed. It is used exclusively by the
// pipeline orchestrator between stages. It stops with `not_found` at the
// first declared source artifact that is missing and with `conflict` at
// the first destination that already exists; links made before that
// point are left in place.
func (h *Handler) Copy(srcID, dstID int64) error {
	declared, srcRoot, err := h.declaredArtifacts(srcID)
	if err != nil {
		return err
	}
	dstRoot := h.fs.JobRootMount(dstID)
	if !store.Exists(dstRoot) {
		if err := os.MkdirAll(dstRoot, 0o755); err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "preparing root mount for job %d", dstID)
		}
	}

	for _, name := range declared {
		srcPath := filepath.Join(srcRoot, name)
		if !store.Exists(srcPath) {
			return apperr.New(apperr.KindNotFound, "artifact %q missing on job %d", name, srcID)
		}
		dstPath := filepath.Join(dstRoot, name)
		if store.Exists(dstPath) {
			return apperr.New(apperr.KindConflict, "artifact %q already exists on job %d", name, dstID)
		}
		if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "preparing artifact directory for job %d", dstID)
		}
		if err := os.Link(srcPath, dstPath); err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "linking artifact %q from job %d to job %d", name, srcID, dstID)
		}
	}
	return nil
}

func (h *Handler) declaredArtifacts(id int64) (names []string, root string, err error) {
	names, err = h.jobs.Artifacts(id)
	if err != nil {
		return nil, "", err
	}
	return names, h.fs.JobRootMount(id), nil
}

// detectMIME probes the file's bytes for its MIME type, the equivalent of
// the Python original's `file -b --mime-type` shellout, implemented with
// net/http.DetectContentType since no dedicated MIME-sniffing library is
// present anywhere in the example pack.
func detectMIME(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	return http.DetectContentType(buf[:n])
}
