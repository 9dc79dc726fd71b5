//go:build !unix

package scanner

import "io/fs"

// lookupOwner is a no-op on platforms without uid/gid stat data.
// Ownership attributes are best-effort by contract.
func (s *Scanner) lookupOwner(info fs.FileInfo) (string, string) {
	return "", ""
}
