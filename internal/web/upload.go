package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"timetable/internal/extract"
)

// Upload failures, all matching extract.ErrValidation.
var (
	ErrMissingFile    = fmt.Errorf("%w: no file part in request", extract.ErrValidation)
	ErrEmptyFilename  = fmt.Errorf("%w: no selected file", extract.ErrValidation)
	ErrUploadTooLarge = fmt.Errorf("%w: upload exceeds the size limit", extract.ErrValidation)
	ErrBadRequest     = fmt.Errorf("%w: request is not a multipart upload", extract.ErrValidation)
)

// multipartSlack covers the multipart framing around the file part.
const multipartSlack = 64 << 10

// saveUpload stores the "file" part of r under a random name and returns it
// as a document. The returned cleanup removes every trace of the upload and
// must be called on all paths, including errors.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request, allowed ...extract.Format) (extract.Document, func(), error) {
	log := zerolog.Ctx(r.Context())
	var paths []string
	cleanup := func() {
		for _, p := range paths {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Str("path", p).Msg("Failed to remove upload")
			}
		}
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartSlack)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return extract.Document{}, cleanup, ErrUploadTooLarge
		case errors.Is(err, http.ErrMissingFile):
			// A file part without a filename is parsed as a plain value.
			if r.MultipartForm != nil && len(r.MultipartForm.Value["file"]) > 0 {
				return extract.Document{}, cleanup, ErrEmptyFilename
			}
			return extract.Document{}, cleanup, ErrMissingFile
		default:
			return extract.Document{}, cleanup, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
	}
	defer file.Close()

	if strings.TrimSpace(header.Filename) == "" {
		return extract.Document{}, cleanup, ErrEmptyFilename
	}
	name := filepath.Base(header.Filename)
	format, ok := extract.FormatOf(name)
	if !ok || (len(allowed) > 0 && !containsFormat(allowed, format)) {
		return extract.Document{}, cleanup, fmt.Errorf("%w: %q", extract.ErrUnsupportedFormat, name)
	}
	if header.Size > s.opts.MaxUploadBytes {
		return extract.Document{}, cleanup, ErrUploadTooLarge
	}
	if header.Size == 0 {
		return extract.Document{}, cleanup, extract.ErrEmptyDocument
	}

	dir := s.opts.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, uuid.New().String()+filepath.Ext(name))
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return extract.Document{}, cleanup, fmt.Errorf("creating upload file: %w", err)
	}
	paths = append(paths, path)

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return extract.Document{}, cleanup, fmt.Errorf("saving upload: %w", err)
	}
	if err := out.Close(); err != nil {
		return extract.Document{}, cleanup, fmt.Errorf("saving upload: %w", err)
	}

	log.Debug().
		Str("filename", name).
		Int64("size", header.Size).
		Str("format", string(format)).
		Msg("Upload saved")
	return extract.Document{Path: path, Name: name}, cleanup, nil
}

func containsFormat(list []extract.Format, f extract.Format) bool {
	for _, x := range list {
		if x == f {
			return true
		}
	}
	return false
}
