// Package zipstream generates ZIP archives as lazily-produced byte
// streams, with the exact archive size known before the first content
// byte is read. Entries declare their size up front and supply their
// content on demand, so archives of remote or expensive data can be
// served with a correct Content-Length without buffering.
//
// The format is store-only (no compression) with per-entry data
// descriptors. Archives and entries are limited to the classic
// format's 32-bit sizes and offsets; there is no zip64 support.
package zipstream

import (
	"io"

	"github.com/apex/log"
)

// Stats for a stream.
type Stats struct {
	FilesFiltered int64
	DirsFiltered  int64
	FilesAdded    int64
	DirsAdded     int64
	SizeContent   int64
}

// New returns a new stream over the given entries.
func New(entries ...Entry) *Stream {
	return &Stream{
		log:     log.Log,
		entries: entries,
	}
}

// Stream holds an ordered list of entries and derives the archive
// size and byte stream from it. Size and Reader walk the same list
// independently, so the list must not change between a size query
// and the generation pass it describes.
type Stream struct {
	entries   []Entry
	filter    Filter
	transform Transformer
	log       log.Interface
	stats     Stats
}

// Stats returns stats about the stream.
func (s *Stream) Stats() *Stats {
	return &s.stats
}

// WithFilter adds a filter used by AddDir.
func (s *Stream) WithFilter(f Filter) *Stream {
	s.filter = f
	return s
}

// WithTransform adds a transform used by AddDir.
func (s *Stream) WithTransform(t Transformer) *Stream {
	s.transform = t
	return s
}

// Add appends an entry.
func (s *Stream) Add(e Entry) *Stream {
	s.entries = append(s.entries, e)
	return s
}

// AddFile appends a file entry whose content is produced by open.
func (s *Stream) AddFile(name string, size int64, open func() (io.ReadCloser, error)) *Stream {
	return s.Add(NewFile(name, size, open))
}

// AddEmptyDir appends an empty directory entry.
func (s *Stream) AddEmptyDir(name string) *Stream {
	return s.Add(NewDir(name))
}

// Entries returns the ordered entry list.
func (s *Stream) Entries() []Entry {
	return s.entries
}

// Size returns the exact byte length of the archive without opening
// any content, suitable for a Content-Length header. It is pure and
// safe to call any number of times before or during generation.
func (s *Stream) Size() (int64, error) {
	return totalSize(s.entries)
}

// Reader returns the archive byte stream. Entry configuration and
// format limits are checked up front, so on a non-nil error no
// producer has been invoked and generation never starts. The stream
// emits exactly Size bytes.
func (s *Stream) Reader() (*Reader, error) {
	if _, err := totalSize(s.entries); err != nil {
		return nil, err
	}

	s.log.Debugf("open: entries=%d", len(s.entries))

	return &Reader{
		entries: s.entries,
		log:     s.log,
		stats:   &s.stats,
	}, nil
}

// WriteTo generates the archive into w.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	r, err := s.Reader()
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(w, r)

	if cerr := r.Close(); err == nil {
		err = cerr
	}

	return n, err
}
