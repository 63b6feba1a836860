// Package storage defines the interface for the remote object store that holds
// uploaded song assets. The MinIO implementation works with any S3-compatible
// provider (MinIO, AWS S3, ArvanCloud).
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ResourceType classifies an asset. Audio is stored under the video class,
// mirroring how media hosts group streamable content.
type ResourceType string

const (
	ResourceVideo ResourceType = "video"
	ResourceImage ResourceType = "image"
)

// ErrResourceMismatch is returned by Destroy when the public id was not issued
// for the given resource type.
var ErrResourceMismatch = errors.New("public id does not match resource type")

// Object is one buffer to upload.
type Object struct {
	Data         []byte
	Folder       string
	ResourceType ResourceType
	ContentType  string
	Filename     string // used only for the extension
}

// Asset identifies an uploaded object.
type Asset struct {
	PublicID  string
	SecureURL string
}

// Storage is the interface for uploading and destroying remote assets.
// Calls are never retried; a failed attempt is terminal.
type Storage interface {
	// Upload stores obj and returns its stable id and retrievable URL.
	Upload(ctx context.Context, obj Object) (Asset, error)
	// Destroy removes the asset identified by publicID.
	Destroy(ctx context.Context, publicID string, resourceType ResourceType) error
}

// NewPublicID builds "<resourceType>/<folder>/<uuid><ext>".
func NewPublicID(resourceType ResourceType, folder, filename string) string {
	folder = strings.Trim(folder, "/")
	name := uuid.NewString() + strings.ToLower(path.Ext(filename))
	if folder == "" {
		return path.Join(string(resourceType), name)
	}
	return path.Join(string(resourceType), folder, name)
}

// CheckResource verifies that publicID was issued for resourceType.
func CheckResource(publicID string, resourceType ResourceType) error {
	if !strings.HasPrefix(publicID, string(resourceType)+"/") {
		return fmt.Errorf("%w: %q is not a %s asset", ErrResourceMismatch, publicID, resourceType)
	}
	return nil
}
