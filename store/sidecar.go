package store

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
)

// sidecarAttrs stores the same key/value metadata as xattrAttrs would, in a
// JSON file alongside the target (path + ".attrs.json"), for filesystems
// without user xattr support. Semantics stay bit-equivalent with the
// xattr-backed store: a missing key or missing sidecar file is "not
// present", never an error.
type sidecarAttrs struct{}

func sidecarPath(path string) string { return path + ".attrs.json" }

func (sidecarAttrs) readAll(path string) (map[string]string, error) {
	b, err := os.ReadFile(sidecarPath(path))
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]string{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s sidecarAttrs) Get(path, key string) (string, bool, error) {
	m, err := s.readAll(path)
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (s sidecarAttrs) Set(path, key, value string) error {
	return withFileLock(sidecarPath(path)+".lock", func(*os.File) error {
		m, err := s.readAll(path)
		if err != nil {
			return err
		}
		m[key] = value
		return s.writeAll(path, m)
	})
}

func (s sidecarAttrs) Remove(path, key string) error {
	return withFileLock(sidecarPath(path)+".lock", func(*os.File) error {
		m, err := s.readAll(path)
		if err != nil {
			return err
		}
		delete(m, key)
		return s.writeAll(path, m)
	})
}

// writeAll writes via a uniquely-named temp file and renames it into
// place, so a crash mid-write never leaves a half-written sidecar for a
// concurrent reader to observe.
func (sidecarAttrs) writeAll(path string, m map[string]string) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	target := sidecarPath(path)
	tmp := target + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}
