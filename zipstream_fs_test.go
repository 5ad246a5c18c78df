package zipstream_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/tj/assert"
	"github.com/tj/go-zipstream"
)

// tree helper building a fixture directory.
func tree(t testing.TB) string {
	dir, err := ioutil.TempDir(os.TempDir(), "zipstream-")
	assert.NoError(t, err, "tmpdir")

	assert.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755), "mkdir")
	assert.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0755), "mkdir")
	assert.NoError(t, ioutil.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644), "write")
	assert.NoError(t, ioutil.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("world!"), 0644), "write")
	assert.NoError(t, ioutil.WriteFile(filepath.Join(dir, ".env"), []byte("secret"), 0644), "write")

	return dir
}

// names helper returning entry names in order.
func names(entries []zipstream.Entry) (out []string) {
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return
}

func TestStream_addDir(t *testing.T) {
	dir := tree(t)
	defer os.RemoveAll(dir)

	z := zipstream.New()
	assert.NoError(t, z.AddDir(dir), "add dir")

	assert.Equal(t, []string{
		".env",
		"a.txt",
		"empty/",
		"sub/",
		"sub/b.txt",
	}, names(z.Entries()))

	r := unzip(t, generate(t, z))
	assert.Len(t, r.File, 5, "entries")

	byName := map[string]string{}
	for _, f := range r.File {
		byName[f.Name] = read(t, f)
	}

	assert.Equal(t, "hello", byName["a.txt"], "content")
	assert.Equal(t, "world!", byName["sub/b.txt"], "content")
	assert.Equal(t, "", byName["empty/"], "content")
}

func TestStream_addDir_filter(t *testing.T) {
	dir := tree(t)
	defer os.RemoveAll(dir)

	z := zipstream.New().WithFilter(zipstream.FilterDotfiles)
	assert.NoError(t, z.AddDir(dir), "add dir")

	assert.Equal(t, []string{
		"a.txt",
		"empty/",
		"sub/",
		"sub/b.txt",
	}, names(z.Entries()))

	assert.Equal(t, int64(1), z.Stats().FilesFiltered, "files filtered")
}

func TestStream_addDir_transform(t *testing.T) {
	dir := tree(t)
	defer os.RemoveAll(dir)

	z := zipstream.New().WithTransform(zipstream.TransformFunc(func(e zipstream.Entry) zipstream.Entry {
		e.Name = "root/" + e.Name
		return e
	}))

	assert.NoError(t, z.AddDir(dir), "add dir")

	for _, name := range names(z.Entries()) {
		assert.Contains(t, name, "root/", "prefix")
	}

	r := unzip(t, generate(t, z))

	for _, f := range r.File {
		assert.Contains(t, f.Name, "root/", "prefix")
	}
}

func TestStream_addDir_symlink(t *testing.T) {
	dir := tree(t)
	defer os.RemoveAll(dir)

	err := os.Symlink("a.txt", filepath.Join(dir, "link"))
	assert.NoError(t, err, "symlink")

	z := zipstream.New()
	assert.NoError(t, z.AddDir(dir), "add dir")

	r := unzip(t, generate(t, z))

	var found bool
	for _, f := range r.File {
		if f.Name == "link" {
			found = true
			assert.Equal(t, "a.txt", read(t, f), "target")
		}
	}

	assert.True(t, found, "link entry")
}
