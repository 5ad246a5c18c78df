package zipstream

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Transformer is the interface used to rewrite entries before they
// are added by AddDir. Content is lazy, so a transform sees the
// entry's metadata and producer, never its bytes.
type Transformer interface {
	Transform(Entry) Entry
}

// TransformFunc implements the Transformer interface.
type TransformFunc func(Entry) Entry

// Transform implementation.
func (f TransformFunc) Transform(e Entry) Entry {
	return f(e)
}

// pathInfo wraps FileInfo to support a full path
// in place of Name(), which just makes the filter
// API a little simpler.
type pathInfo struct {
	os.FileInfo
	path string
}

// Name returns the full path.
func (p *pathInfo) Name() string {
	return p.path
}

// AddDir appends entries for root's tree, recursively. Directories
// are added with a trailing slash, files with a producer that opens
// the file when the stream reaches it, and symlinks with their target
// path as content. Files must not change size between AddDir and
// generation, or the stream fails with SizeMismatchError.
func (s *Stream) AddDir(root string) error {
	return filepath.Walk(root, func(abspath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		path, err := filepath.Rel(root, abspath)
		if err != nil {
			return err
		}
		path = filepath.Clean(path)

		if path == "." {
			return nil
		}

		info = &pathInfo{info, path}
		if s.filter != nil && s.filter.Match(info) {
			s.log.Debugf("filtered %s – %d", info.Name(), info.Size())

			if info.IsDir() {
				atomic.AddInt64(&s.stats.DirsFiltered, 1)
				return filepath.SkipDir
			}

			atomic.AddInt64(&s.stats.FilesFiltered, 1)
			return nil
		}

		e, err := fileEntry(abspath, path, info)
		if err != nil {
			return err
		}

		if s.transform != nil {
			e = s.transform.Transform(e)
		}

		s.Add(e)
		return nil
	})
}

// fileEntry returns the entry for one walked file.
func fileEntry(abspath, path string, info os.FileInfo) (Entry, error) {
	if info.IsDir() {
		return Entry{
			Name:     path + "/",
			Modified: info.ModTime(),
		}, nil
	}

	if info.Mode()&os.ModeSymlink != 0 {
		link, err := os.Readlink(abspath)
		if err != nil {
			return Entry{}, errors.Wrap(err, "reading symlink")
		}

		return Entry{
			Name:     path,
			Size:     int64(len(link)),
			Modified: info.ModTime(),
			Open: func() (io.ReadCloser, error) {
				return ioutil.NopCloser(strings.NewReader(link)), nil
			},
		}, nil
	}

	return Entry{
		Name:     path,
		Size:     info.Size(),
		Modified: info.ModTime(),
		Open: func() (io.ReadCloser, error) {
			f, err := os.Open(abspath)
			if err != nil {
				return nil, errors.Wrap(err, "opening file")
			}
			return f, nil
		},
	}, nil
}
