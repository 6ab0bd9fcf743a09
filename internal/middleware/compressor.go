package middleware

import (
	"context"
	"io"
	"net/http"

	"github.com/drstein77/productcatalog/internal/compress"
)

// Archive types accepted in the archiveType query parameter.
const (
	ArchiveZip = "zip"
	ArchiveTar = "tar"
)

type archiveTypeKey struct{}

// ArchiveTypeFromContext returns the archive type chosen for the request.
func ArchiveTypeFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(archiveTypeKey{}).(string); ok {
		return v
	}
	return ArchiveZip
}

// ArchiveTypeMiddleware picks the archive type of the request: an uploaded
// body's Content-Encoding wins, then the archiveType query parameter, then zip.
func ArchiveTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		archiveType := r.Header.Get("Content-Encoding")
		if !isArchiveType(archiveType) {
			archiveType = r.URL.Query().Get("archiveType")
		}
		if !isArchiveType(archiveType) {
			archiveType = ArchiveZip
		}
		r = r.WithContext(context.WithValue(r.Context(), archiveTypeKey{}, archiveType))

		CreateCompressMiddleware(archiveType)(next).ServeHTTP(w, r)
	})
}

func isArchiveType(s string) bool {
	return s == ArchiveZip || s == ArchiveTar
}

// CreateCompressMiddleware unpacks request bodies sent with a Content-Encoding
// matching compressionType, so handlers read the archived JSON record directly.
func CreateCompressMiddleware(compressionType string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Encoding") == compressionType {
				var cr io.ReadCloser
				var err error
				switch compressionType {
				case ArchiveTar:
					cr, err = compress.NewTarReader(r.Body)
				default:
					cr, err = compress.NewZipReader(r.Body)
				}
				if err != nil {
					http.Error(w, "invalid archive: "+err.Error(), http.StatusBadRequest)
					return
				}
				r.Body = cr
				r.Header.Del("Content-Encoding")
				defer cr.Close()
			}

			h.ServeHTTP(w, r)
		})
	}
}

// NewArchiveWriter wraps w so that everything written lands in fileName
// inside an archive of the given type. Callers must Close it.
func NewArchiveWriter(w io.Writer, archiveType, fileName string) (io.WriteCloser, error) {
	if archiveType == ArchiveTar {
		return compress.NewTarWriter(w, fileName), nil
	}
	return compress.NewZipWriter(w, fileName)
}

// ArchiveContentType is the response media type of an archive type.
func ArchiveContentType(archiveType string) string {
	if archiveType == ArchiveTar {
		return "application/x-tar"
	}
	return "application/zip"
}
