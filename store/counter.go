package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// NextJobID atomically reads, increments and persists the job-id counter,
// so two concurrent creates never produce the same id. It mirrors
// create_job(), which reads max_job_id.txt, adds one, and rewrites it; here
// the read-increment-write is wrapped in an exclusive flock over the same
// file instead of relying on the GIL.
func (s *Store) NextJobID() (int64, error) {
	var next int64
	err := withFileLock(s.CounterPath(), func(f *os.File) error {
		current, err := readCounter(f)
		if err != nil {
			return err
		}
		next = current + 1
		return writeCounter(f, next)
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func readCounter(f *os.File) (int64, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return 0, err
	}
	b := make([]byte, 64)
	n, err := f.Read(b)
	if err != nil && n == 0 {
		return 0, nil // empty/new counter file
	}
	s := strings.TrimSpace(string(b[:n]))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt job counter %q: %w", s, err)
	}
	return v, nil
}

func writeCounter(f *os.File, v int64) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := f.WriteString(strconv.FormatInt(v, 10))
	return err
}
