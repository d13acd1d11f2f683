// Package notify decodes raw change-notification batches.
//
// A batch is a run of variable-length records in the inotify(7) layout:
//
//	wd     int32   watch descriptor the record belongs to
//	mask   uint32  event bits
//	cookie uint32  rename cookie (unused here)
//	len    uint32  length of name, including NUL padding
//	name   [len]byte
//
// The next record starts HeaderSize+len bytes after the current one. The
// fsnotify backend on other platforms encodes its events in the same layout so
// a single decoder serves both.
package notify

import (
	"bytes"
	"encoding/binary"
	"path"
)

// HeaderSize is the fixed part of every record.
const HeaderSize = 16

// Mask bits, numerically identical to the inotify constants.
const (
	MaskModify     uint32 = 0x00000002
	MaskCloseWrite uint32 = 0x00000008
	MaskCreate     uint32 = 0x00000100
	MaskOverflow   uint32 = 0x00004000
	MaskIgnored    uint32 = 0x00008000
	MaskIsDir      uint32 = 0x40000000
)

// Record is one decoded change. Name is copied out of the batch and stays
// valid after the buffer is reused.
type Record struct {
	Name   string
	Watch  int32
	Mask   uint32
	Cookie uint32
}

// Written reports whether the record describes file content being written.
func (r Record) Written() bool {
	return r.Mask&(MaskCloseWrite|MaskModify) != 0 && r.Mask&MaskIsDir == 0
}

// Overflow reports whether the record is the kernel's queue overflow marker.
func (r Record) Overflow() bool {
	return r.Mask&MaskOverflow != 0
}

// Batch is the result of one completed request.
type Batch struct {
	// Data is a view of the channel's buffer, valid until the next request.
	Data []byte
	// Dirs maps watch descriptors to directories relative to the watched
	// root ("" for the root itself). A nil map passes names through untouched.
	Dirs map[int32]string
}

// Len returns the reported byte count.
func (b Batch) Len() int {
	return len(b.Data)
}

// AppendRecord encodes a record and appends it to dst. The name is NUL
// terminated and padded so the following record stays 4-byte aligned.
func AppendRecord(dst []byte, wd int32, mask uint32, name string) []byte {
	nameLen := 0
	if name != "" {
		nameLen = (len(name) + 1 + 3) &^ 3
	}

	var hdr [HeaderSize]byte
	binary.NativeEndian.PutUint32(hdr[0:4], uint32(wd)) //nolint:gosec // G115: bit pattern round-trips
	binary.NativeEndian.PutUint32(hdr[4:8], mask)
	binary.NativeEndian.PutUint32(hdr[8:12], 0)
	binary.NativeEndian.PutUint32(hdr[12:16], uint32(nameLen)) //nolint:gosec // G115: bounded by the name

	dst = append(dst, hdr[:]...)
	dst = append(dst, name...)
	for i := len(name); i < nameLen; i++ {
		dst = append(dst, 0)
	}
	return dst
}

// RecordSize returns the encoded size of a record with the given name.
func RecordSize(name string) int {
	if name == "" {
		return HeaderSize
	}
	return HeaderSize + (len(name)+1+3)&^3
}

// joinName prefixes name with the relative directory of its watch.
func joinName(dir, name string) string {
	if dir == "" {
		return name
	}
	if name == "" {
		return dir
	}
	return path.Join(dir, name)
}

// trimNUL returns the bytes before the first NUL.
func trimNUL(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
