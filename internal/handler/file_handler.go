/*
Package handler provides the HTTP handlers and routing setup for the CircleChat server.

This file contains the media endpoints: attachment upload into object storage
and presigned download URL generation.
*/
package handler

import (
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"circlechat/internal/pkg/errs"
	"circlechat/internal/pkg/logx"
	"circlechat/internal/pkg/req"
	"circlechat/internal/pkg/resp"
)

const (
	// MaxImageBytes caps image attachments.
	MaxImageBytes int64 = 10 << 20

	// MaxVideoBytes caps video clip attachments.
	MaxVideoBytes int64 = 50 << 20

	// DownloadURLTTL is the lifetime of a presigned download URL.
	DownloadURLTTL = 15 * time.Minute
)

// allowedMediaTypes maps a permitted file extension to its MIME type and size cap.
var allowedMediaTypes = map[string]struct {
	mimeType string
	maxBytes int64
}{
	".jpg":  {"image/jpeg", MaxImageBytes},
	".jpeg": {"image/jpeg", MaxImageBytes},
	".png":  {"image/png", MaxImageBytes},
	".webp": {"image/webp", MaxImageBytes},
	".gif":  {"image/gif", MaxImageBytes},
	".mp4":  {"video/mp4", MaxVideoBytes},
	".mov":  {"video/quicktime", MaxVideoBytes},
	".webm": {"video/webm", MaxVideoBytes},
}

// HandleUploadMedia accepts a multipart upload, streams it into object
// storage, and returns the object key with a presigned download URL the
// client can embed in a message.
func HandleUploadMedia(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cerr := req.SetupMultipart(w, r); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFormParseFailed))
			return
		}
		defer file.Close()

		ext := strings.ToLower(path.Ext(header.Filename))
		spec, ok := allowedMediaTypes[ext]
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileTypeInvalid))
			return
		}

		if header.Size > spec.maxBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileSizeTooLarge))
			return
		}

		key := "media/" + uuid.NewString() + ext

		if err := deps.Media.Upload(r.Context(), key, spec.mimeType, file); err != nil {
			logx.Error(err, "Media upload failed", "key", key)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		url, err := deps.Media.PresignDownload(r.Context(), key, DownloadURLTTL)
		if err != nil {
			logx.Error(err, "Failed to presign fresh upload", "key", key)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{
			"key": key,
			"url": url,
		})
	}
}

// validMediaKey reports whether key names an object this server created.
func validMediaKey(key string) bool {
	return key != "" && strings.HasPrefix(key, "media/") && !strings.Contains(key, "..")
}

// HandlePresignDownload returns a fresh presigned URL for a stored object.
func HandlePresignDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if !validMediaKey(key) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		url, err := deps.Media.PresignDownload(r.Context(), key, DownloadURLTTL)
		if err != nil {
			logx.Error(err, "Failed to presign download", "key", key)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{"url": url})
	}
}

// HandleDeleteMedia removes a stored attachment. The metadata probe keeps the
// response honest: deleting a key that never existed reports not found instead
// of silently succeeding.
func HandleDeleteMedia(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if !validMediaKey(key) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if _, err := deps.Media.GetObjectMetadata(r.Context(), key); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileNotFound))
			return
		}

		if err := deps.Media.Delete(r.Context(), key); err != nil {
			logx.Error(err, "Media delete failed", "key", key)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{"key": key})
	}
}
