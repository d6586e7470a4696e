// Package storage reads uploaded files from the object store. Uploads happen
// client-side; this service only ever stats and fetches existing objects.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound is returned when the notified object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes an uploaded object. Checksum and Filename are encoded
// in the object key as <checksum>_<filename>.
type ObjectInfo struct {
	Path        string
	Filename    string
	Checksum    string
	Size        int64
	ContentType string
}

// ObjectStore is the subset of object storage the import pipeline needs.
type ObjectStore interface {
	Stat(ctx context.Context, objectPath string) (ObjectInfo, error)
	Fetch(ctx context.Context, objectPath string) ([]byte, error)
}

// Client is an ObjectStore backed by an S3 compatible endpoint.
type Client struct {
	client *minio.Client
	bucket string
}

// NewClient connects to the object store.
func NewClient(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Client, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to object store: %w", err)
	}
	return &Client{client: mc, bucket: bucket}, nil
}

// Stat fetches object metadata and decodes checksum and filename from the key.
func (c *Client) Stat(ctx context.Context, objectPath string) (ObjectInfo, error) {
	stat, err := c.client.StatObject(ctx, c.bucket, objectPath, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return ObjectInfo{}, ErrObjectNotFound
		}
		return ObjectInfo{}, fmt.Errorf("failed to stat object %s: %w", objectPath, err)
	}

	checksum, filename, err := ParseObjectKey(objectPath)
	if err != nil {
		return ObjectInfo{}, err
	}

	return ObjectInfo{
		Path:        objectPath,
		Filename:    filename,
		Checksum:    checksum,
		Size:        stat.Size,
		ContentType: stat.ContentType,
	}, nil
}

// Fetch reads the full object payload.
func (c *Client) Fetch(ctx context.Context, objectPath string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", objectPath, err)
	}
	defer func() { _ = obj.Close() }()

	payload, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to read object %s: %w", objectPath, err)
	}
	return payload, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}

// ParseObjectKey splits an object key of the form
// imports/<tenant>/<checksum>_<filename> into checksum and original filename.
func ParseObjectKey(objectPath string) (checksum, filename string, err error) {
	base := path.Base(objectPath)
	idx := strings.Index(base, "_")
	if idx <= 0 || idx == len(base)-1 {
		return "", "", fmt.Errorf("object key %q does not encode checksum and filename", objectPath)
	}
	checksum = base[:idx]
	filename = base[idx+1:]
	if len(checksum) != 64 {
		return "", "", fmt.Errorf("object key %q carries malformed checksum", objectPath)
	}
	return checksum, filename, nil
}
