package zipstream

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Entry describes a single archive member. Entries are plain values,
// the stream never mutates them.
type Entry struct {
	// Name is the archive-relative path. Directory entries
	// end with a slash.
	Name string

	// Size is the exact number of content bytes the entry's
	// producer will emit. Zero for directories.
	Size int64

	// Open produces the entry's content. It is invoked at most once
	// per generation pass, when the stream reaches the entry, and
	// its reader must yield exactly Size bytes. A nil Open marks
	// an empty directory.
	Open func() (io.ReadCloser, error)

	// Modified is the entry's modification time. The zero
	// value encodes as the MS-DOS epoch.
	Modified time.Time
}

// NewFile returns a file entry whose content is produced by open.
func NewFile(name string, size int64, open func() (io.ReadCloser, error)) Entry {
	return Entry{
		Name: name,
		Size: size,
		Open: open,
	}
}

// NewDir returns an empty directory entry, adding the
// trailing slash when missing.
func NewDir(name string) Entry {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}

	return Entry{
		Name: name,
	}
}

// dir returns true for directory entries.
func (e *Entry) dir() bool {
	return e.Open == nil
}

// validate the entry's configuration.
func (e *Entry) validate() error {
	switch {
	case e.Name == "":
		return &ConfigError{e.Name, "empty name"}
	case e.Size < 0:
		return &ConfigError{e.Name, "negative size"}
	case e.dir() && e.Size != 0:
		return &ConfigError{e.Name, "directory entry with non-zero size"}
	case !e.dir() && strings.HasSuffix(e.Name, "/"):
		return &ConfigError{e.Name, "directory entry with content"}
	}

	return nil
}

// ConfigError is returned for a malformed entry, before any
// bytes are generated.
type ConfigError struct {
	Name   string
	Reason string
}

// Error implementation.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("zipstream: entry %q: %s", e.Name, e.Reason)
}
