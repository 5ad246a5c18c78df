package zipstream

import "fmt"

// SizeError is returned when the archive cannot be represented in the
// classic ZIP format's 16/32-bit fields. No bytes are generated; the
// caller must split the archive or choose another encoding.
type SizeError struct {
	Reason string
}

// Error implementation.
func (e *SizeError) Error() string {
	return "zipstream: " + e.Reason
}

// totalSize computes the exact archive size from entry metadata alone,
// never opening content. Per entry the cost is the local header and
// name, the declared content length, and the data descriptor, followed
// by one central directory record per entry and the end record. The
// generation pass re-derives the same layout, so the stream emits
// precisely this many bytes.
func totalSize(entries []Entry) (int64, error) {
	if len(entries) > uint16max {
		return 0, &SizeError{fmt.Sprintf("too many entries: %d", len(entries))}
	}

	var pos int64

	for i := range entries {
		e := &entries[i]

		if err := e.validate(); err != nil {
			return 0, err
		}

		if len(e.Name) > uint16max {
			return 0, &SizeError{fmt.Sprintf("entry name too long: %d bytes", len(e.Name))}
		}

		if e.Size > uint32max {
			return 0, &SizeError{fmt.Sprintf("entry %q too large: %d bytes", e.Name, e.Size)}
		}

		pos += fileHeaderLen + int64(len(e.Name)) + e.Size + dataDescriptorLen

		// local header offsets and the directory offset are 32-bit
		if pos > uint32max {
			return 0, &SizeError{fmt.Sprintf("archive too large at entry %q", e.Name)}
		}
	}

	for i := range entries {
		pos += directoryHeaderLen + int64(len(entries[i].Name))
	}
	pos += directoryEndLen

	if pos > uint32max {
		return 0, &SizeError{"archive too large"}
	}

	return pos, nil
}
