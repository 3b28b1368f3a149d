package audio

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/calls"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
)

// HierarchicalKey builds the time-partitioned object key for a processed
// recording. Partitioning by playlist and UTC calendar date keeps object
// listings cheap for downstream batch readers.
func HierarchicalKey(bucketPath, playlistUUID, callUID string, startedAt time.Time) string {
	t := startedAt.UTC()
	return fmt.Sprintf("%s/playlist_id=%s/%d/%02d/%02d/call_%s.wav",
		bucketPath, playlistUUID, t.Year(), t.Month(), t.Day(), callUID)
}

// LegacyKey is the flat layout used before partitioning was introduced,
// still written when a call carries no start time.
func LegacyKey(bucketPath, callUID string) string {
	return fmt.Sprintf("%s/%s.wav", bucketPath, callUID)
}

// ObjectMetadata describes an upload for operators browsing the bucket.
// Missing row fields become empty strings rather than being omitted.
func ObjectMetadata(call *calls.Call) map[string]string {
	timestamp := ""
	if call.StartedAt != nil {
		timestamp = call.StartedAt.UTC().Format(time.RFC3339)
	}
	talkgroup := ""
	if call.TGID != nil {
		talkgroup = strconv.FormatInt(*call.TGID, 10)
	}
	sourceFeed := ""
	if call.FeedID != nil {
		sourceFeed = strconv.FormatInt(*call.FeedID, 10)
	}
	return map[string]string{
		"playlist_id":   call.PlaylistUUID,
		"timestamp_utc": timestamp,
		"call_id":       call.CallUID,
		"talkgroup":     talkgroup,
		"duration_ms":   strconv.FormatInt(call.DurationMS, 10),
		"codec":         "pcm_s16le",
		"source_feed":   sourceFeed,
	}
}

// Store wraps the object storage client used for processed recordings.
type Store struct {
	client *minio.Client
	bucket string
}

func NewStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist yet. Safe to call
// from multiple instances at startup.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		if exists, checkErr := s.client.BucketExists(ctx, s.bucket); checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	logger.Log.WithField("bucket", s.bucket).Info("Created storage bucket")
	return nil
}

// Upload stores a local file under key and returns the s3:// URI for
// logging. The object key alone is what gets persisted on the call row.
func (s *Store) Upload(ctx context.Context, localPath, key string, metadata map[string]string) (string, error) {
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType:  "audio/wav",
		UserMetadata: metadata,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Object opens a stored recording for reading. The hierarchical key is
// tried first, then the legacy flat key, so readers keep working across
// recordings stored under either layout.
func (s *Store) Object(ctx context.Context, hierarchicalKey, legacyKey string) (io.ReadCloser, string, error) {
	for _, key := range []string{hierarchicalKey, legacyKey} {
		if key == "" {
			continue
		}
		obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, "", fmt.Errorf("get %s: %w", key, err)
		}
		if _, err := obj.Stat(); err != nil {
			obj.Close()
			if minio.ToErrorResponse(err).Code == "NoSuchKey" {
				continue
			}
			return nil, "", fmt.Errorf("stat %s: %w", key, err)
		}
		return obj, key, nil
	}
	return nil, "", fmt.Errorf("object not found under %q or %q", hierarchicalKey, legacyKey)
}
