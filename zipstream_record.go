package zipstream

import (
	"encoding/binary"
	"time"
	"unicode/utf8"
)

// Record signatures and fixed lengths of the classic (non zip64)
// ZIP format. These constants are the single source of truth for
// both size prediction and generation.
const (
	fileHeaderSignature      = 0x04034b50
	dataDescriptorSignature  = 0x08074b50 // de-facto standard; required by OS X Finder
	directoryHeaderSignature = 0x02014b50
	directoryEndSignature    = 0x06054b50

	fileHeaderLen      = 30 // + filename
	dataDescriptorLen  = 16 // signature, crc32, compressed size, size
	directoryHeaderLen = 46 // + filename
	directoryEndLen    = 22

	zipVersion20 = 20 // 2.0
	zipStore     = 0  // no compression

	// Limits of the classic format.
	uint16max = (1 << 16) - 1
	uint32max = (1 << 32) - 1
)

// General purpose flags.
const (
	// flagDataDescriptor defers CRC-32 and sizes to the
	// descriptor following the content.
	flagDataDescriptor = 0x8

	// flagUTF8 marks the name as UTF-8 encoded.
	flagUTF8 = 0x800
)

// msdosDir is the MS-DOS external attribute bit for directories.
const msdosDir = 0x10

// msdosEpoch and msdosMax bound the times an MS-DOS timestamp can
// represent. The epoch doubles as the default for entries without a
// modification time.
var (
	msdosEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	msdosMax   = time.Date(2107, 12, 31, 23, 59, 59, 0, time.UTC)
)

// header captures what the central directory records for one entry.
type header struct {
	name    string
	flags   uint16
	crc32   uint32
	size    uint32
	attrs   uint32
	offset  uint32
	modDate uint16
	modTime uint16
}

// encodeFileHeader returns the local file header. CRC-32 and sizes are
// zero since they are deferred to the data descriptor.
func encodeFileHeader(name string, flags uint16, modDate, modTime uint16) []byte {
	buf := make([]byte, fileHeaderLen, fileHeaderLen+len(name))
	b := writeBuf(buf)
	b.uint32(fileHeaderSignature)
	b.uint16(zipVersion20)
	b.uint16(flags)
	b.uint16(zipStore)
	b.uint16(modTime)
	b.uint16(modDate)
	b.uint32(0) // crc32
	b.uint32(0) // compressed size
	b.uint32(0) // uncompressed size
	b.uint16(uint16(len(name)))
	b.uint16(0) // extra length
	return append(buf, name...)
}

// encodeDataDescriptor returns the descriptor carrying the now-known
// CRC-32 and size. Stored content compresses to its own length.
func encodeDataDescriptor(crc, size uint32) []byte {
	buf := make([]byte, dataDescriptorLen)
	b := writeBuf(buf)
	b.uint32(dataDescriptorSignature)
	b.uint32(crc)
	b.uint32(size) // compressed size
	b.uint32(size) // uncompressed size
	return buf
}

// encodeDirectoryHeader returns the central directory record for h.
func encodeDirectoryHeader(h *header) []byte {
	buf := make([]byte, directoryHeaderLen, directoryHeaderLen+len(h.name))
	b := writeBuf(buf)
	b.uint32(directoryHeaderSignature)
	b.uint16(zipVersion20) // creator version, MS-DOS attributes
	b.uint16(zipVersion20) // version needed to extract
	b.uint16(h.flags)
	b.uint16(zipStore)
	b.uint16(h.modTime)
	b.uint16(h.modDate)
	b.uint32(h.crc32)
	b.uint32(h.size) // compressed size
	b.uint32(h.size) // uncompressed size
	b.uint16(uint16(len(h.name)))
	b.uint16(0) // extra length
	b.uint16(0) // comment length
	b.uint16(0) // disk number start
	b.uint16(0) // internal attributes
	b.uint32(h.attrs)
	b.uint32(h.offset)
	return append(buf, h.name...)
}

// encodeDirectoryEnd returns the end of central directory record for
// count entries occupying size bytes at offset.
func encodeDirectoryEnd(count uint16, size, offset uint32) []byte {
	buf := make([]byte, directoryEndLen)
	b := writeBuf(buf)
	b.uint32(directoryEndSignature)
	b.uint16(0) // disk number
	b.uint16(0) // disk number with the directory
	b.uint16(count)
	b.uint16(count)
	b.uint32(size)
	b.uint32(offset)
	b.uint16(0) // comment length
	return buf
}

// entryFlags returns the general purpose flags for name.
func entryFlags(name string) uint16 {
	flags := uint16(flagDataDescriptor)
	if valid, require := detectUTF8(name); valid && require {
		flags |= flagUTF8
	}
	return flags
}

// detectUTF8 reports whether s is a valid UTF-8 string, and whether
// the string must be considered UTF-8 encoding, i.e. not compatible
// with CP-437 or ASCII.
func detectUTF8(s string) (valid, require bool) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r < 0x20 || r > 0x7d || r == 0x5c {
			if !utf8.ValidRune(r) || (r == utf8.RuneError && size == 1) {
				return false, false
			}
			require = true
		}
	}
	return true, require
}

// msdosTime converts t to MS-DOS date and time fields, in UTC.
// Times outside the representable range clamp to its bounds, with
// zero times encoding as the epoch.
func msdosTime(t time.Time) (dosDate, dosTime uint16) {
	if t.IsZero() || t.Before(msdosEpoch) {
		t = msdosEpoch
	}
	if t.After(msdosMax) {
		t = msdosMax
	}
	t = t.UTC()

	dosDate = uint16((t.Year()-1980)<<9 | int(t.Month())<<5 | t.Day())
	dosTime = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
	return
}

type writeBuf []byte

func (b *writeBuf) uint16(v uint16) {
	binary.LittleEndian.PutUint16(*b, v)
	*b = (*b)[2:]
}

func (b *writeBuf) uint32(v uint32) {
	binary.LittleEndian.PutUint32(*b, v)
	*b = (*b)[4:]
}
