// Package attach converts user-selected local files into transport-ready
// attachments. Unsupported files are reported per-file; one bad file
// never aborts the batch.
package attach

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/westbrookdaniel/chat/pkg/models"
)

// allowed is the content-type allow-list for uploads.
var allowed = map[string]struct{}{
	"image/png":        {},
	"image/jpeg":       {},
	"image/gif":        {},
	"image/webp":       {},
	"application/pdf":  {},
	"text/plain":       {},
	"text/markdown":    {},
	"application/json": {},
	"text/csv":         {},
}

// LocalFile is one user-selected file pending packaging.
type LocalFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// FileError reports why a single file was rejected.
type FileError struct {
	Name string
	Msg  string
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Msg)
}

// Packager validates and converts local files into attachments.
type Packager struct {
	// MaxFileSize bounds a single file; zero means unbounded.
	MaxFileSize int64
}

// Pack converts files in input order. Rejected files come back as
// FileErrors alongside the successfully packed attachments.
func (p *Packager) Pack(files []LocalFile) ([]models.Attachment, []*FileError) {
	var out []models.Attachment
	var errs []*FileError
	for _, f := range files {
		ct := resolveContentType(f)
		if _, ok := allowed[ct]; !ok {
			errs = append(errs, &FileError{Name: f.Name, Msg: "unsupported content type " + ct})
			continue
		}
		if p.MaxFileSize > 0 && int64(len(f.Data)) > p.MaxFileSize {
			errs = append(errs, &FileError{Name: f.Name, Msg: "file too large"})
			continue
		}
		out = append(out, models.Attachment{
			URI:         localURI(f),
			ContentType: ct,
			Name:        f.Name,
		})
	}
	return out, errs
}

// localURI derives the blob reference from filename plus content
// identity, so same-named files with different bytes never collide and
// re-packing the same file yields the same URI.
func localURI(f LocalFile) string {
	sum := sha256.Sum256(f.Data)
	return "local:" + hex.EncodeToString(sum[:4]) + ":" + f.Name
}

// resolveContentType prefers the declared type, then the filename
// extension, then content sniffing.
func resolveContentType(f LocalFile) string {
	if ct := normalize(f.ContentType); ct != "" {
		return ct
	}
	if ext := filepath.Ext(f.Name); ext != "" {
		if ct := normalize(mime.TypeByExtension(ext)); ct != "" {
			return ct
		}
		// sniffing never yields markdown or csv; map the common ones here
		switch strings.ToLower(ext) {
		case ".md", ".markdown":
			return "text/markdown"
		case ".csv":
			return "text/csv"
		}
	}
	if len(f.Data) > 0 {
		return normalize(http.DetectContentType(f.Data))
	}
	return "application/octet-stream"
}

func normalize(ct string) string {
	ct = strings.TrimSpace(strings.ToLower(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
