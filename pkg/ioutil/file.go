package ioutil

import (
	"io"
	"os"
)

// FileReader is a Reader backed by an *os.File.
type FileReader struct {
	f    *os.File
	size int64
	eof  bool
}

// OpenFile opens path for random-access reading.
func OpenFile(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileReader{f: f, size: st.Size()}, nil
}

func (r *FileReader) Read(buf []byte) (int, error) {
	n, err := r.f.Read(buf)
	if err == io.EOF {
		r.eof = true
	}
	return n, err
}

func (r *FileReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := r.f.Seek(offset, whence)
	if err == nil {
		r.eof = false
	}
	return pos, err
}

func (r *FileReader) Tell() (int64, error) {
	return r.f.Seek(0, io.SeekCurrent)
}

func (r *FileReader) Size() (int64, error) {
	return r.size, nil
}

func (r *FileReader) EOF() bool {
	return r.eof
}

func (r *FileReader) Close() error {
	return r.f.Close()
}
