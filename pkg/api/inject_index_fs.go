package api

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"io/fs"
	"time"
)

// InjectIndexFS serves one file of the wrapped FS with markers replaced by values.
type InjectIndexFS struct {
	fs.FS
	name    string
	content []byte
}

// NewInjectIndexFS replaces every marker key found in name with the HTML escaped value.
func NewInjectIndexFS(fsys fs.FS, name string, values map[string]string) (fs.FS, error) {
	if len(values) == 0 {
		return fsys, nil
	}

	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	all, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	for marker, value := range values {
		all = bytes.ReplaceAll(all, []byte(marker), []byte(html.EscapeString(value)))
	}
	return &InjectIndexFS{
		FS:      fsys,
		name:    name,
		content: all,
	}, nil
}

func (i *InjectIndexFS) Open(name string) (fs.File, error) {
	if name != i.name {
		return i.FS.Open(name)
	}
	return &memFile{
		Reader: bytes.NewReader(i.content),
		name:   name,
		size:   int64(len(i.content)),
	}, nil
}

// memFile is seekable, as http.FileServer requires.
type memFile struct {
	*bytes.Reader
	name string
	size int64
}

func (f *memFile) Close() error {
	return nil
}

func (f *memFile) Stat() (fs.FileInfo, error) {
	return &memFileInfo{file: f}, nil
}

type memFileInfo struct {
	file *memFile
}

func (s *memFileInfo) Name() string       { return s.file.name }
func (s *memFileInfo) Size() int64        { return s.file.size }
func (s *memFileInfo) Mode() fs.FileMode  { return 0o444 }
func (s *memFileInfo) ModTime() time.Time { return time.Time{} }
func (s *memFileInfo) IsDir() bool        { return false }
func (s *memFileInfo) Sys() interface{}   { return nil }
