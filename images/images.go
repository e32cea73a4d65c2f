// Package images implements the image store: accept, serve, and delete
// apptainer SIF blobs, enforcing a valid name, a non-empty payload and
// etag preconditions. The upload's content type is not checked.
// Grounded on routers/images.py and on the docker package for the general
// shape of a small blob store wrapping a content-addressable digest.
package images

import (
	"os"
	"sort"
	"strings"

	"github.com/distribution/reference"
	"github.com/pkg/errors"

	"github.com/mati2251/res/apperr"
	"github.com/mati2251/res/digest"
	"github.com/mati2251/res/store"
)

// Properties describes a stored image.
type Properties struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// imageType is returned by Properties for every image.
const imageType = "apptainer"

// Store implements the Image Store operations over a *store.Store.
type Store struct {
	fs *store.Store
}

// New returns an image Store backed by fs.
func New(fs *store.Store) *Store {
	return &Store{fs: fs}
}

// validateName rejects names that are not syntactically valid image
// repository names, reusing the container ecosystem's reference grammar
// (github.com/distribution/reference) rather than a hand-rolled regexp.
func validateName(name string) error {
	if name == "" {
		return apperr.New(apperr.KindInvalid, "image name must not be empty")
	}
	if _, err := reference.WithName(name); err != nil {
		return apperr.Wrap(apperr.KindInvalid, err, "invalid image name %q", name)
	}
	return nil
}

// Put stores bytes as image name. clientETag is the value of an
// If-Match-style precondition header; empty means none was supplied.
func (s *Store) Put(name string, data []byte, clientETag string) (etag string, err error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", apperr.New(apperr.KindInvalid, "image payload must not be empty")
	}

	path := s.fs.ImagePath(name)
	if store.Exists(path) {
		current, ok, err := s.fs.GetAttr(path, store.AttrHash)
		if err != nil {
			return "", apperr.Wrap(apperr.KindInternal, err, "reading existing image etag")
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

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, errors.Wrap(err, "writing image blob"), "put image %q", name)
	}
	newETag := digest.OfBytes(data)
	if err := s.fs.SetAttr(path, store.AttrHash, newETag); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, errors.Wrap(err, "setting image hash attribute"), "put image %q", name)
	}
	return newETag, nil
}

// Get returns the raw bytes of image name.
func (s *Store) Get(name string) ([]byte, error) {
	path := s.fs.ImagePath(name)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, apperr.New(apperr.KindNotFound, "image %q not found", name)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "reading image %q", name)
	}
	return b, nil
}

// Properties returns metadata about image name.
func (s *Store) Properties(name string) (Properties, error) {
	path := s.fs.ImagePath(name)
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Properties{}, apperr.New(apperr.KindNotFound, "image %q not found", name)
	}
	if err != nil {
		return Properties{}, apperr.Wrap(apperr.KindInternal, err, "stat image %q", name)
	}
	return Properties{Name: name, Size: fi.Size(), Type: imageType, Status: "available"}, nil
}

// Delete removes image name.
func (s *Store) Delete(name string) error {
	path := s.fs.ImagePath(name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return apperr.New(apperr.KindNotFound, "image %q not found", name)
		}
		return apperr.Wrap(apperr.KindInternal, err, "deleting image %q", name)
	}
	_ = s.fs.RemoveAttr(path, store.AttrHash)
	return nil
}

// List returns images ordered by name ascending, with the total count
// before pagination and the requested window applied.
func (s *Store) List(skip, limit int) (items []Properties, total int, err error) {
	if skip < 0 {
		return nil, 0, apperr.New(apperr.KindInvalid, "skip must be >= 0")
	}
	if limit <= 0 {
		return nil, 0, apperr.New(apperr.KindInvalid, "limit must be > 0")
	}

	entries, err := os.ReadDir(s.fs.ImageRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return []Properties{}, 0, nil
		}
		return nil, 0, apperr.Wrap(apperr.KindInternal, err, "listing images")
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), store.ImageExtension) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), store.ImageExtension))
	}
	sort.Strings(names)
	total = len(names)

	if skip >= total {
		return []Properties{}, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	for _, name := range names[skip:end] {
		p, err := s.Properties(name)
		if err != nil {
			continue // raced with a concurrent delete; omit rather than fail the page
		}
		items = append(items, p)
	}
	if items == nil {
		items = []Properties{}
	}
	return items, total, nil
}
