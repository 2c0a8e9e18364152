package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store re-hosts downloaded bytes and hands back a public URL.
type Store interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// GridFS stores blobs in a MongoDB GridFS bucket. Public URLs point at the
// service's own /blobs route.
type GridFS struct {
	Bucket  *gridfs.Bucket
	BaseURL string
}

func NewGridFS(db *mongo.Database, bucketName, baseURL string) (*GridFS, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("create gridfs bucket: %w", err)
	}
	return &GridFS{Bucket: bucket, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *GridFS) PublicURL(name string) string {
	return s.BaseURL + "/blobs/" + name
}

// Upload writes data under name. Names carry a timestamp and random suffix so
// inserts never collide; the driver's GridFS API manages its own deadlines.
func (s *GridFS) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	if _, err := s.Bucket.UploadFromStream(name, bytes.NewReader(data), opts); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return s.PublicURL(name), nil
}

// Open returns a reader over the named blob and its stored content type.
func (s *GridFS) Open(name string) (io.ReadCloser, string, error) {
	stream, err := s.Bucket.OpenDownloadStreamByName(name)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", name, err)
	}

	contentType := "application/octet-stream"
	if file := stream.GetFile(); file != nil && file.Metadata != nil {
		var meta struct {
			ContentType string `bson:"contentType"`
		}
		if err := bson.Unmarshal(file.Metadata, &meta); err == nil && meta.ContentType != "" {
			contentType = meta.ContentType
		}
	}
	return stream, contentType, nil
}
