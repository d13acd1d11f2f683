package notify

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a record chain runs past the reported byte count.
var ErrMalformed = errors.New("malformed notification batch")

// Cursor walks the records of one batch. It is lazy and one-shot:
//
//	c := notify.NewCursor(batch)
//	for c.Next() {
//	    rec := c.Record()
//	}
//	if err := c.Err(); err != nil {
//	    ...
//	}
type Cursor struct {
	batch Batch
	off   int
	rec   Record
	err   error
}

// NewCursor returns a cursor positioned before the first record of b.
func NewCursor(b Batch) *Cursor {
	return &Cursor{batch: b}
}

// Next advances to the next record. It returns false at the end of the batch
// or on a malformed record; Err distinguishes the two.
func (c *Cursor) Next() bool {
	data := c.batch.Data
	for c.err == nil && c.off < len(data) {
		remaining := len(data) - c.off
		if remaining < HeaderSize {
			c.fail("truncated header: %d bytes left at offset %d", remaining, c.off)
			return false
		}

		hdr := data[c.off : c.off+HeaderSize]
		nameLen := binary.NativeEndian.Uint32(hdr[12:16])
		if uint64(nameLen) > uint64(remaining-HeaderSize) {
			c.fail("record at offset %d claims %d name bytes, %d available", c.off, nameLen, remaining-HeaderSize)
			return false
		}

		start := c.off + HeaderSize
		next := start + int(nameLen)
		rec := Record{
			Watch:  int32(binary.NativeEndian.Uint32(hdr[0:4])), //nolint:gosec // G115: wd is signed in the kernel ABI
			Mask:   binary.NativeEndian.Uint32(hdr[4:8]),
			Cookie: binary.NativeEndian.Uint32(hdr[8:12]),
			Name:   trimNUL(data[start:next]),
		}
		c.off = next

		if c.batch.Dirs != nil && !rec.Overflow() {
			dir, ok := c.batch.Dirs[rec.Watch]
			if !ok {
				// Stale descriptor from a watch removed earlier in the batch.
				continue
			}
			rec.Name = joinName(dir, rec.Name)
		}

		c.rec = rec
		return true
	}
	return false
}

// Record returns the record produced by the last successful Next.
func (c *Cursor) Record() Record {
	return c.rec
}

// Err returns the decode failure, if any.
func (c *Cursor) Err() error {
	return c.err
}

func (c *Cursor) fail(format string, args ...any) {
	c.err = fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, args...)...)
	c.rec = Record{}
}

// Scan decodes the whole batch. It stops at the first malformed record and
// returns the records decoded before it along with the error.
func Scan(b Batch) ([]Record, error) {
	var recs []Record
	c := NewCursor(b)
	for c.Next() {
		recs = append(recs, c.Record())
	}
	return recs, c.Err()
}
