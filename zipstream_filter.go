package zipstream

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/denormal/go-gitignore"
)

// Filter decides which walked files become entries. Match receives
// the file's info with its archive-relative path as Name; returning
// true omits the file, and pruning a matched directory skips its
// entire subtree.
type Filter interface {
	Match(os.FileInfo) bool
}

// FilterFunc implements the Filter interface.
type FilterFunc func(os.FileInfo) bool

// Match implementation.
func (f FilterFunc) Match(i os.FileInfo) bool {
	return f(i)
}

// FilterDotfiles omits dotfiles and anything beneath a dot
// directory, keeping .git trees and editor droppings out of
// the archive.
var FilterDotfiles = FilterFunc(func(info os.FileInfo) bool {
	dir, file := filepath.Split(info.Name())
	return isDot(dir) || isDot(file)
})

// isDot returns true if there's a leading dot.
func isDot(s string) bool {
	return len(s) > 0 && s[0] == '.'
}

// FilterPatterns returns a filter for the gitignore patterns read
// from r, including negations.
func FilterPatterns(r io.Reader) (Filter, error) {
	filter := gitignore.New(r, ".", func(e gitignore.Error) bool {
		return true
	})

	return FilterFunc(func(info os.FileInfo) bool {
		if m := filter.Relative(info.Name(), info.IsDir()); m != nil {
			return m.Ignore()
		}
		return false
	}), nil
}

// FilterPatternFiles combines the pattern files in order into a
// single filter, skipping any which do not exist, so a caller can
// hand over .gitignore, .npmignore and friends unconditionally.
func FilterPatternFiles(files ...string) (Filter, error) {
	var r io.Reader = strings.NewReader("")

	for _, path := range files {
		b, err := ioutil.ReadFile(path)

		if os.IsNotExist(err) {
			continue
		}

		if err != nil {
			return nil, err
		}

		r = io.MultiReader(r,
			strings.NewReader(fmt.Sprintf("# %s\n", path)),
			bytes.NewReader(b),
			strings.NewReader("\n"))
	}

	return FilterPatterns(r)
}
