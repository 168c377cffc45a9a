package backup

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/lamiti/shopsync/internal/config"
)

// mockS3Client records calls for uploader tests.
type mockS3Client struct {
	putBucket string
	putKey    string
	putPath   string
	putErr    error

	presignedErr error
}

func (m *mockS3Client) FPutObject(_ context.Context, bucket, objectName, filePath string, _ interface{}) error {
	m.putBucket = bucket
	m.putKey = objectName
	m.putPath = filePath
	return m.putErr
}

func (m *mockS3Client) PresignedGetObject(_ context.Context, bucket, objectName string, _ time.Duration) (*url.URL, error) {
	if m.presignedErr != nil {
		return nil, m.presignedErr
	}
	return url.Parse("https://s3.example.com/" + bucket + "/" + objectName + "?sig=abc")
}

func TestNewUploader_NoBucketIsNoop(t *testing.T) {
	u, err := NewUploader(config.BackupConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := u.(*NoopUploader); !ok {
		t.Fatalf("Expected NoopUploader, got %T", u)
	}
}

func TestNewUploader_WithBucket(t *testing.T) {
	u, err := NewUploader(config.BackupConfig{
		Endpoint:  "minio.local:9000",
		Bucket:    "replicas",
		AccessKey: "ak",
		SecretKey: "sk",
		URLExpiry: config.Duration(15 * time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := u.(*S3Uploader); !ok {
		t.Fatalf("Expected S3Uploader, got %T", u)
	}
}

func TestNoopUploader(t *testing.T) {
	u := &NoopUploader{}

	if err := u.Upload(context.Background(), "till-1", "/tmp/x.db"); err != nil {
		t.Errorf("Expected no-op upload to succeed, got %v", err)
	}
	if _, _, err := u.PresignedURL(context.Background(), "till-1"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestS3Uploader_Upload(t *testing.T) {
	client := &mockS3Client{}
	u := &S3Uploader{client: client, bucket: "replicas", urlExpiry: 15 * time.Minute}

	if err := u.Upload(context.Background(), "till-1", "/tmp/snapshot.db"); err != nil {
		t.Fatal(err)
	}

	if client.putBucket != "replicas" {
		t.Errorf("Expected bucket replicas, got %s", client.putBucket)
	}
	if client.putKey != "till-1/replica/current.db" {
		t.Errorf("Expected device-scoped key, got %s", client.putKey)
	}
	if client.putPath != "/tmp/snapshot.db" {
		t.Errorf("Expected snapshot path, got %s", client.putPath)
	}
}

func TestS3Uploader_UploadError(t *testing.T) {
	client := &mockS3Client{putErr: errors.New("connection reset")}
	u := &S3Uploader{client: client, bucket: "replicas"}

	if err := u.Upload(context.Background(), "till-1", "/tmp/snapshot.db"); err == nil {
		t.Fatal("Expected upload error to propagate")
	}
}

func TestS3Uploader_PresignedURL(t *testing.T) {
	client := &mockS3Client{}
	u := &S3Uploader{client: client, bucket: "replicas", urlExpiry: 15 * time.Minute}

	link, expiry, err := u.PresignedURL(context.Background(), "till-1")
	if err != nil {
		t.Fatal(err)
	}
	if link == "" {
		t.Error("Expected non-empty URL")
	}
	if time.Until(expiry) <= 0 {
		t.Errorf("Expected future expiry, got %v", expiry)
	}
}
