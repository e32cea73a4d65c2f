package store

// AttrStore reads and writes the extended attributes attached to a file.
// Two implementations exist: one backed by real filesystem xattrs (Linux,
// via golang.org/x/sys/unix) and a sidecar fallback, used when the
// filesystem does not support user xattrs, that keys the same names and
// preserves the same semantics. The split follows the
// docker_client_linux.go / docker_client_nonlinux.go build-tag convention
// for platform-specific implementations behind a shared interface.
type AttrStore interface {
	// Get returns the attribute value and whether it was present. A
	// missing attribute is not an error.
	Get(path, key string) (value string, ok bool, err error)
	// Set writes (creating or replacing) the attribute.
	Set(path, key, value string) error
	// Remove deletes the attribute if present; removing an absent
	// attribute is not an error.
	Remove(path, key string) error
}

// defaultAttrs is the AttrStore used by Store unless overridden, chosen by
// build tag: xattrAttrs on platforms with user xattr support, with
// automatic fallback to sidecarAttrs the first time an operation reports
// the filesystem does not support them.
var defaultAttrs AttrStore = newAutoAttrs()

// autoAttrs tries real xattrs first and falls back permanently to a
// sidecar once the underlying filesystem proves unsupporting, so a single
// ENOTSUP does not leave every subsequent metadata read silently empty and
// does not re-probe on every call.
type autoAttrs struct {
	primary  AttrStore
	fallback AttrStore
	state    attrState
}

type attrState int32

const (
	attrStateUnknown attrState = iota
	attrStateNative
	attrStateSidecar
)

func newAutoAttrs() *autoAttrs {
	return &autoAttrs{primary: xattrAttrs{}, fallback: sidecarAttrs{}}
}

func (a *autoAttrs) Get(path, key string) (string, bool, error) {
	if a.useSidecar() {
		return a.fallback.Get(path, key)
	}
	v, ok, err := a.primary.Get(path, key)
	if isUnsupported(err) {
		a.state = attrStateSidecar
		return a.fallback.Get(path, key)
	}
	return v, ok, err
}

func (a *autoAttrs) Set(path, key, value string) error {
	if a.useSidecar() {
		return a.fallback.Set(path, key, value)
	}
	err := a.primary.Set(path, key, value)
	if isUnsupported(err) {
		a.state = attrStateSidecar
		return a.fallback.Set(path, key, value)
	}
	if err == nil {
		a.state = attrStateNative
	}
	return err
}

func (a *autoAttrs) Remove(path, key string) error {
	if a.useSidecar() {
		return a.fallback.Remove(path, key)
	}
	err := a.primary.Remove(path, key)
	if isUnsupported(err) {
		a.state = attrStateSidecar
		return a.fallback.Remove(path, key)
	}
	return err
}

func (a *autoAttrs) useSidecar() bool {
	return a.state == attrStateSidecar
}
