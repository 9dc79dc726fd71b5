//go:build unix

package scanner

import (
	"io/fs"
	"os/user"
	"strconv"
	"syscall"
)

// lookupOwner resolves the owner and group names for a file.
// Lookups go through the LRU cache; failures degrade to the numeric id.
func (s *Scanner) lookupOwner(info fs.FileInfo) (string, string) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", ""
	}

	uid := strconv.FormatUint(uint64(st.Uid), 10)
	gid := strconv.FormatUint(uint64(st.Gid), 10)

	owner, ok := s.ownerCache.Get("u" + uid)
	if !ok {
		owner = uid
		if u, err := user.LookupId(uid); err == nil {
			owner = u.Username
		}
		s.ownerCache.Add("u"+uid, owner)
	}

	group, ok := s.ownerCache.Get("g" + gid)
	if !ok {
		group = gid
		if g, err := user.LookupGroupId(gid); err == nil {
			group = g.Name
		}
		s.ownerCache.Add("g"+gid, group)
	}

	return owner, group
}
