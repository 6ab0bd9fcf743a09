package compress

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
)

// ErrNoRecord is returned when an archive holds no .json file.
var ErrNoRecord = errors.New("JSON file not found in the archive")

// ZipReader implements io.ReadCloser for reading the first JSON file of a ZIP archive.
type ZipReader struct {
	current io.ReadCloser
}

// NewZipReader creates a new ZipReader, extracting the first found JSON file from the ZIP archive.
func NewZipReader(r io.ReadCloser) (*ZipReader, error) {
	defer r.Close()

	// zip needs random access, so the whole archive is buffered
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		return nil, err
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if isRecord(f.Name) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			return &ZipReader{current: rc}, nil
		}
	}

	return nil, ErrNoRecord
}

// Read reads data from the current JSON file.
func (z *ZipReader) Read(p []byte) (int, error) {
	return z.current.Read(p)
}

// Close closes the current JSON file.
func (z *ZipReader) Close() error {
	return z.current.Close()
}

// ZipWriter packs everything written to it into a single file of a ZIP archive.
type ZipWriter struct {
	zipWriter *zip.Writer
	file      io.Writer
}

// NewZipWriter creates a new ZipWriter with the specified file name inside the archive.
func NewZipWriter(w io.Writer, fileName string) (*ZipWriter, error) {
	zw := zip.NewWriter(w)
	f, err := zw.Create(fileName)
	if err != nil {
		return nil, err
	}
	return &ZipWriter{
		zipWriter: zw,
		file:      f,
	}, nil
}

// Write writes data to the file inside the ZIP archive.
func (z *ZipWriter) Write(p []byte) (int, error) {
	return z.file.Write(p)
}

// Close finishes the ZIP archive.
func (z *ZipWriter) Close() error {
	return z.zipWriter.Close()
}

func isRecord(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".json")
}
