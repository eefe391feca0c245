// Package wire frames layer entries for byte-oriented media (durable files,
// remote stores). The format is strict: decoders validate magic, version and
// every length field with overflow-safe bounds checks, and reject anything
// malformed with ErrCorrupt so callers can self-heal by dropping the entry.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/unkn0wn-root/stratacache/layer"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("stratacache: corrupt entry")
	magic4     = [...]byte{'S', 'T', 'R', 'C'}
)

const (
	originMemory byte = iota + 1
	originStructured
	originFlat
	originRemote
)

func originByte(k layer.Kind) byte {
	switch k {
	case layer.Memory:
		return originMemory
	case layer.DurableStructured:
		return originStructured
	case layer.DurableFlat:
		return originFlat
	case layer.Remote:
		return originRemote
	}
	return 0
}

func originKind(b byte) (layer.Kind, bool) {
	switch b {
	case originMemory:
		return layer.Memory, true
	case originStructured:
		return layer.DurableStructured, true
	case originFlat:
		return layer.DurableFlat, true
	case originRemote:
		return layer.Remote, true
	}
	return "", false
}

// header: magic(4) | ver(1) | origin(1) | version(u64 be) | timestamp(i64 be)
const headerLen = 4 + 1 + 1 + 8 + 8

// HeaderLen is the fixed prefix length; the timestamp can be peeked without
// decoding the full envelope (see PeekTimestamp).
const HeaderLen = headerLen

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames an entry:
//
//	header | userID(u16+b) | nodeID(u16+b) | tags(u16 n, (u16+b)*n)
//	       | deps(u16 n, (u16+b)*n) | payload(u32+b)
func Encode(e layer.Entry) []byte {
	total := headerLen + 2 + len(e.Meta.UserID) + 2 + len(e.Meta.NodeID) + 2 + 2 + 4 + len(e.Payload)
	for _, t := range e.Meta.Tags {
		total += 2 + len(t)
	}
	for _, d := range e.Meta.Dependencies {
		total += 2 + len(d)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(originByte(e.Origin))

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], e.Version)
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(e.Timestamp))
	buf.Write(u8[:])

	writeStr(&buf, e.Meta.UserID)
	writeStr(&buf, e.Meta.NodeID)
	writeStrs(&buf, e.Meta.Tags)
	writeStrs(&buf, e.Meta.Dependencies)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)

	return buf.Bytes()
}

func writeStr(buf *bytes.Buffer, s string) {
	if len(s) > 0xFFFF {
		panic("stratacache: metadata string too long")
	}
	var u2 [2]byte
	binary.BigEndian.PutUint16(u2[:], uint16(len(s)))
	buf.Write(u2[:])
	buf.WriteString(s)
}

func writeStrs(buf *bytes.Buffer, ss []string) {
	if len(ss) > 0xFFFF {
		panic("stratacache: too many metadata strings")
	}
	var u2 [2]byte
	binary.BigEndian.PutUint16(u2[:], uint16(len(ss)))
	buf.Write(u2[:])
	for _, s := range ss {
		writeStr(buf, s)
	}
}

// Decode parses a framed entry. The returned payload and strings are copies
// independent of b.
func Decode(b []byte) (layer.Entry, error) {
	var e layer.Entry
	if len(b) < headerLen || !hasMagic(b) || b[4] != version {
		return e, ErrCorrupt
	}
	origin, ok := originKind(b[5])
	if !ok {
		return e, ErrCorrupt
	}
	e.Origin = origin

	off := 6
	e.Version = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	e.Timestamp = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	var err error
	if e.Meta.UserID, off, err = readStr(b, off); err != nil {
		return layer.Entry{}, err
	}
	if e.Meta.NodeID, off, err = readStr(b, off); err != nil {
		return layer.Entry{}, err
	}
	if e.Meta.Tags, off, err = readStrs(b, off); err != nil {
		return layer.Entry{}, err
	}
	if e.Meta.Dependencies, off, err = readStrs(b, off); err != nil {
		return layer.Entry{}, err
	}

	if off+4 > len(b) {
		return layer.Entry{}, ErrCorrupt
	}
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen < 0 || plen > len(b)-off { // overflow-safe bound check
		return layer.Entry{}, ErrCorrupt
	}
	e.Payload = append([]byte(nil), b[off:off+plen]...)
	return e, nil
}

// PeekTimestamp reads only the fixed header and returns the entry timestamp.
// Eviction scans use it to rank candidates without a full decode.
func PeekTimestamp(b []byte) (int64, error) {
	if len(b) < headerLen || !hasMagic(b) || b[4] != version {
		return 0, ErrCorrupt
	}
	return int64(binary.BigEndian.Uint64(b[14:22])), nil
}

func readStr(b []byte, off int) (string, int, error) {
	if off+2 > len(b) {
		return "", 0, ErrCorrupt
	}
	l := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if l > len(b)-off {
		return "", 0, ErrCorrupt
	}
	return string(b[off : off+l]), off + l, nil
}

func readStrs(b []byte, off int) ([]string, int, error) {
	if off+2 > len(b) {
		return nil, 0, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if n == 0 {
		return nil, off, nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, next, err := readStr(b, off)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
		off = next
	}
	return out, off, nil
}
