/*
Package storage provides the media storage service backing chat attachments.

Clients upload images and video clips through the server, which streams them
into an S3-compatible bucket and hands back the object key. Downloads go
through short-lived presigned URLs so the bucket itself stays private.
*/
package storage

import (
	"context"
	"io"
	"time"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// MediaService defines the public interface for the media storage service.
type MediaService interface {
	// Upload streams the file body into the bucket under the given key.
	Upload(ctx context.Context, key, mimeType string, body io.Reader) error

	// PresignDownload generates a pre-signed URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the file specified by the given key.
	Delete(ctx context.Context, key string) error

	// GetObjectMetadata retrieves the object's metadata.
	GetObjectMetadata(ctx context.Context, key string) (map[string]string, error)
}

// NewMediaService is the factory function for MediaService.
// It initializes and returns a concrete implementation based on the provided configuration.
func NewMediaService(cfg ServiceConfig) (MediaService, error) {
	// Currently, only S3 compatible implementations are supported.
	return newS3Client(cfg)
}
