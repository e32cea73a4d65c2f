package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// withFileLock opens (creating if necessary) the file at path, takes an
// exclusive advisory lock for the duration of fn, and releases it
// afterwards. Used to serialize the job-id counter increment and sidecar
// attribute read-modify-write cycles.
func withFileLock(path string, fn func(*os.File) error) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return err
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn(f)
}
