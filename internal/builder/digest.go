package builder

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// Digest computes content checksums with a configured algorithm.
// The zero value is a disabled digest: Sum returns "" and change
// detection falls back to modification times.
type Digest struct {
	algo string
}

// NewDigest creates a digest for the named algorithm.
// Supported: "md5", "sha1", "sha256", and "" or "none" to disable.
func NewDigest(algo string) (Digest, error) {
	switch algo {
	case "", "none", "md5", "sha1", "sha256":
		if algo == "none" {
			algo = ""
		}
		return Digest{algo: algo}, nil
	default:
		return Digest{}, fmt.Errorf("unsupported checksum algorithm: %q", algo)
	}
}

// Enabled reports whether checksums are computed at all.
func (d Digest) Enabled() bool { return d.algo != "" }

// Algorithm returns the configured algorithm name ("" when disabled).
func (d Digest) Algorithm() string { return d.algo }

// Sum returns the hex checksum of data, or "" when disabled.
// The digest is stable across runs for unchanged content.
func (d Digest) Sum(data []byte) string {
	var h hash.Hash
	switch d.algo {
	case "md5":
		h = md5.New()
	case "sha1":
		h = sha1.New()
	case "sha256":
		h = sha256.New()
	default:
		return ""
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
