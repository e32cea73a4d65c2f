// Package digest computes the content digests used as ETags throughout
// res. It wraps github.com/opencontainers/go-digest rather than
// hand-rolling hex(sha256(...)), the same digest type used across the
// container ecosystem for content-addressable blobs.
package digest

import (
	"io"

	"github.com/opencontainers/go-digest"
)

// Algorithm is fixed to SHA-256; ETags are opaque hex strings to clients
// regardless of the algorithm used to produce them.
const Algorithm = digest.SHA256

// OfBytes returns the lowercase-hex SHA-256 digest of b, e.g.
// "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824".
func OfBytes(b []byte) string {
	return Algorithm.FromBytes(b).Encoded()
}

// OfReader consumes r to EOF and returns its SHA-256 digest, for a blob
// held as a stream rather than a buffer. Image and script uploads are
// buffered and hashed with OfBytes.
func OfReader(r io.Reader) (string, error) {
	d, err := Algorithm.FromReader(r)
	if err != nil {
		return "", err
	}
	return d.Encoded(), nil
}

// Equal reports whether a client-supplied etag matches a stored one. Etags
// are opaque byte strings to clients; comparison is exact.
func Equal(clientETag, storedETag string) bool {
	return clientETag != "" && clientETag == storedETag
}
