/*
Package req provides helpers for HTTP request parsing and data binding.

It covers strict JSON body decoding and multipart form setup with size limits,
returning application errors from the errs package on failure.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"circlechat/internal/pkg/errs"
)

const (
	// MaxFormMemory is the amount of memory (32 MB) ParseMultipartForm may use
	// for non-file fields before spilling to temporary files.
	MaxFormMemory int64 = 32 << 20

	// MaxRequestFileSize caps the entire request body, including files, at 50 MB.
	// Enforced via http.MaxBytesReader. Sized for short chat video clips.
	MaxRequestFileSize int64 = 50 << 20
)

// BindJSON decodes the JSON request body into dst, rejecting unknown fields
// and trailing content.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

// SetupMultipart wraps the body with a size limit and parses multipart form data.
func SetupMultipart(w http.ResponseWriter, r *http.Request) *errs.CustomError {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestFileSize)

	err := r.ParseMultipartForm(MaxFormMemory)

	if err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}

		return errs.NewError(errs.ErrFormParseFailed)
	}

	return nil
}
