// Package store implements the on-disk layout: one subtree per image blob,
// one subtree per job, with extended attributes on well-known files as the
// authoritative metadata. Grounded on utils/job.py's constants (JOBS_STORE,
// IMAGES_STORE, PROPERTIES_NAME, ...) and on filesystem.go for the general
// shape of a small on-disk-layout helper package.
package store

import "path/filepath"

// Well-known file and directory names within a job directory.
const (
	PropertiesName = "properties"
	ScriptName     = "script"
	ImageLinkName  = "image.sif"
	OverlayDir     = "overlay"
	RootDir        = "root"
	LogName        = "job.log"
	CounterName    = "max_job_id"
)

// ImageExtension is the required suffix for uploaded image blobs.
const ImageExtension = ".sif"

// Extended attribute keys used on job and image files.
const (
	AttrHash      = "user.hash"
	AttrImage     = "user.image"
	AttrArtifacts = "user.artifacts"
	AttrExitCode  = "user.exit_code"
	AttrState     = "user.state"
)

// Store roots the two on-disk subtrees: one for image blobs, one for job
// directories.
type Store struct {
	ImageRoot string
	JobRoot   string

	// Attrs overrides the process-wide AttrStore; nil uses defaultAttrs.
	Attrs AttrStore
}

// New returns a Store rooted at the given directories. The directories are
// not created here; call EnsureDirs before use.
func New(imageRoot, jobRoot string) *Store {
	return &Store{ImageRoot: imageRoot, JobRoot: jobRoot}
}

// EnsureDirs creates the image and job roots if they do not already exist.
func (s *Store) EnsureDirs() error {
	if err := ensureDir(s.ImageRoot); err != nil {
		return err
	}
	return ensureDir(s.JobRoot)
}

// ImagePath returns the path of the stored blob for image name.
func (s *Store) ImagePath(name string) string {
	return filepath.Join(s.ImageRoot, name+ImageExtension)
}

// JobDir returns the directory for job id.
func (s *Store) JobDir(id int64) string {
	return filepath.Join(s.JobRoot, itoa(id))
}

// JobProperties returns the path of the job's properties marker file.
func (s *Store) JobProperties(id int64) string {
	return filepath.Join(s.JobDir(id), PropertiesName)
}

// JobScript returns the path of the job's script file.
func (s *Store) JobScript(id int64) string {
	return filepath.Join(s.JobDir(id), ScriptName)
}

// JobImageLink returns the path of the job's image symlink.
func (s *Store) JobImageLink(id int64) string {
	return filepath.Join(s.JobDir(id), ImageLinkName)
}

// JobOverlay returns the job's writable overlay directory.
func (s *Store) JobOverlay(id int64) string {
	return filepath.Join(s.JobDir(id), OverlayDir)
}

// JobRootMount returns the directory mapped into the container as /root.
func (s *Store) JobRootMount(id int64) string {
	return filepath.Join(s.JobDir(id), RootDir)
}

// JobLog returns the path of the job's combined stdout/stderr capture.
func (s *Store) JobLog(id int64) string {
	return filepath.Join(s.JobDir(id), LogName)
}

// CounterPath returns the path of the job-id counter file.
func (s *Store) CounterPath() string {
	return filepath.Join(s.JobRoot, CounterName)
}
