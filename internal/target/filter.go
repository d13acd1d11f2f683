package target

import "github.com/listenupapp/watch/internal/notify"

// Matches reports whether a decoded record applies to the target.
//
// Directory targets match every written record. File targets match only a
// record whose name is byte-for-byte the file name: no case folding, no
// prefixes, no globs.
func (t Target) Matches(rec notify.Record) bool {
	if !rec.Written() {
		return false
	}
	if t.IsDirectory {
		return true
	}
	return len(rec.Name) == len(t.FileName) && rec.Name == t.FileName
}

// MatchesOverflow reports whether a lost batch applies to the target. It
// always does: when records were dropped, assume the target changed.
func (t Target) MatchesOverflow() bool {
	return true
}
