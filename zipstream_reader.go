package zipstream

import (
	"fmt"
	"hash/crc32"
	"io"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// errClosed is returned from reads after Close.
var errClosed = errors.New("zipstream: reader closed")

// SizeMismatchError is returned when a content producer emits a
// different number of bytes than its entry declared. Bytes already
// emitted cannot be fixed up, so the stream is aborted.
type SizeMismatchError struct {
	Name     string
	Declared int64
	Actual   int64
}

// Error implementation.
func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("zipstream: entry %q: declared %d bytes, produced %d", e.Name, e.Declared, e.Actual)
}

// accumulator folds content chunks into a running CRC-32
// and byte count.
type accumulator struct {
	crc uint32
	n   int64
}

// update folds p into the running values.
func (a *accumulator) update(p []byte) {
	a.crc = crc32.Update(a.crc, crc32.IEEETable, p)
	a.n += int64(len(p))
}

// Generation states.
type state int

const (
	stateEntry state = iota
	stateContent
	stateDone
)

// Reader emits the archive as a pull-based byte stream, advancing only
// as the consumer reads. At most one content source is open at a time,
// so arbitrarily large archives stream with bounded memory.
//
// Errors are sticky: once a read fails, the stream is aborted and
// every subsequent read returns the same error.
type Reader struct {
	entries []Entry
	log     log.Interface
	stats   *Stats

	state   state
	index   int    // next entry
	offset  int64  // bytes emitted so far
	buf     []byte // pending record bytes
	content io.ReadCloser
	acc     accumulator
	dir     []header // central directory, in entry order
	closed  bool
	err     error
}

// Read implementation.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, nil
	}

	for {
		if r.err != nil {
			return 0, r.err
		}

		if len(r.buf) > 0 {
			n := copy(p, r.buf)
			r.buf = r.buf[n:]
			r.offset += int64(n)
			return n, nil
		}

		switch r.state {
		case stateEntry:
			if r.index == len(r.entries) {
				r.buf = r.directory()
				r.state = stateDone
				continue
			}

			if err := r.openEntry(); err != nil {
				return 0, r.fail(err)
			}

		case stateContent:
			n, err := r.readContent(p)
			if err != nil {
				return 0, r.fail(err)
			}

			if n > 0 {
				r.offset += int64(n)
				return n, nil
			}

		case stateDone:
			if !r.closed {
				r.closed = true
				r.log.WithFields(log.Fields{
					"files_filtered": atomic.LoadInt64(&r.stats.FilesFiltered),
					"dirs_filtered":  atomic.LoadInt64(&r.stats.DirsFiltered),
					"files_added":    atomic.LoadInt64(&r.stats.FilesAdded),
					"dirs_added":     atomic.LoadInt64(&r.stats.DirsAdded),
					"size_content":   humanize.Bytes(uint64(atomic.LoadInt64(&r.stats.SizeContent))),
				}).Debug("close")
			}
			return 0, io.EOF
		}
	}
}

// Close releases the open content source of an abandoned stream.
// Reads after Close fail. Close is not required once Read has
// returned io.EOF.
func (r *Reader) Close() error {
	var err error

	if r.content != nil {
		err = r.content.Close()
		r.content = nil
	}

	if r.err == nil && r.state != stateDone {
		r.err = errClosed
	}

	return err
}

// fail records err and poisons subsequent reads.
func (r *Reader) fail(err error) error {
	r.err = err
	return err
}

// openEntry buffers the local file header for the current entry,
// records its central directory header, and invokes its content
// producer. The buffer is empty on entry to this state, so the
// current offset is the entry's local header offset.
func (r *Reader) openEntry() error {
	e := &r.entries[r.index]

	r.log.Debugf("add %s: size=%d", e.Name, e.Size)

	flags := entryFlags(e.Name)
	modDate, modTime := msdosTime(e.Modified)

	var attrs uint32
	if e.dir() {
		attrs = msdosDir
		atomic.AddInt64(&r.stats.DirsAdded, 1)
	} else {
		atomic.AddInt64(&r.stats.FilesAdded, 1)
		atomic.AddInt64(&r.stats.SizeContent, e.Size)
	}

	r.dir = append(r.dir, header{
		name:    e.Name,
		flags:   flags,
		attrs:   attrs,
		offset:  uint32(r.offset),
		modDate: modDate,
		modTime: modTime,
	})

	r.buf = encodeFileHeader(e.Name, flags, modDate, modTime)
	r.acc = accumulator{}

	if e.Open != nil {
		content, err := e.Open()
		if err != nil {
			return err
		}
		r.content = content
	}

	r.state = stateContent
	return nil
}

// readContent streams the current entry's content into p, folding it
// through the accumulator. A zero count with a nil error means the
// entry completed and its data descriptor is buffered.
func (r *Reader) readContent(p []byte) (int, error) {
	e := &r.entries[r.index]

	if r.content == nil {
		return 0, r.closeEntry()
	}

	n, err := r.content.Read(p)
	if n > 0 {
		r.acc.update(p[:n])

		if r.acc.n > e.Size {
			r.content.Close()
			return 0, &SizeMismatchError{
				Name:     e.Name,
				Declared: e.Size,
				Actual:   r.acc.n,
			}
		}
	}

	if err == io.EOF && n > 0 {
		// surface the final chunk now, the EOF on the next read
		err = nil
	}

	switch {
	case err == io.EOF:
		cerr := r.content.Close()
		r.content = nil
		if cerr != nil {
			return 0, cerr
		}
		return 0, r.closeEntry()
	case err != nil:
		r.content.Close()
		return 0, err
	}

	return n, nil
}

// closeEntry verifies the declared size, buffers the data descriptor
// and completes the entry's central directory header.
func (r *Reader) closeEntry() error {
	e := &r.entries[r.index]

	if r.acc.n != e.Size {
		return &SizeMismatchError{
			Name:     e.Name,
			Declared: e.Size,
			Actual:   r.acc.n,
		}
	}

	r.buf = encodeDataDescriptor(r.acc.crc, uint32(r.acc.n))

	h := &r.dir[len(r.dir)-1]
	h.crc32 = r.acc.crc
	h.size = uint32(r.acc.n)

	r.index++
	r.state = stateEntry
	return nil
}

// directory returns the central directory followed by the end record.
func (r *Reader) directory() []byte {
	start := r.offset

	var buf []byte
	for i := range r.dir {
		buf = append(buf, encodeDirectoryHeader(&r.dir[i])...)
	}

	return append(buf, encodeDirectoryEnd(uint16(len(r.dir)), uint32(len(buf)), uint32(start))...)
}
