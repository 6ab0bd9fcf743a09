package compress

import (
	"archive/tar"
	"bytes"
	"io"
	"time"
)

// TarReader implements io.ReadCloser for reading the first JSON file of a TAR archive.
type TarReader struct {
	current io.Reader
	eof     bool
}

// NewTarReader creates a new TarReader positioned at the first JSON file of the archive.
func NewTarReader(r io.ReadCloser) (*TarReader, error) {
	defer r.Close()

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}

	tr := tar.NewReader(bytes.NewReader(buf.Bytes()))
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag == tar.TypeReg && isRecord(header.Name) {
			return &TarReader{current: tr}, nil
		}
	}

	return nil, ErrNoRecord
}

// Read reads data from the current JSON file.
func (t *TarReader) Read(p []byte) (int, error) {
	if t.eof {
		return 0, io.EOF
	}
	n, err := t.current.Read(p)
	if err == io.EOF {
		t.eof = true
	}
	return n, err
}

// Close finishes reading.
func (t *TarReader) Close() error {
	return nil
}

// TarWriter packs everything written to it into a single file of a TAR archive.
// The tar header needs the file size, so content is buffered until Close.
type TarWriter struct {
	w        io.Writer
	fileName string
	buf      bytes.Buffer
	modTime  time.Time
}

func NewTarWriter(w io.Writer, fileName string) *TarWriter {
	return &TarWriter{w: w, fileName: fileName, modTime: time.Now()}
}

func (t *TarWriter) Write(p []byte) (int, error) {
	return t.buf.Write(p)
}

// Close writes the header, the buffered content and the archive trailer.
func (t *TarWriter) Close() error {
	tw := tar.NewWriter(t.w)
	header := &tar.Header{
		Name:    t.fileName,
		Mode:    0o644,
		Size:    int64(t.buf.Len()),
		ModTime: t.modTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if _, err := tw.Write(t.buf.Bytes()); err != nil {
		return err
	}
	return tw.Close()
}
