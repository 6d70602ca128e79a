package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type recordingPutter struct {
	key    string
	bucket string
	body   []byte
	err    error
}

func (r *recordingPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.key = aws.ToString(in.Key)
	r.bucket = aws.ToString(in.Bucket)
	r.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestPutAudioUsesPrefixedKey(t *testing.T) {
	t.Parallel()

	local := filepath.Join(t.TempDir(), "main-with-intro.MP3")
	if err := os.WriteFile(local, []byte("audio"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	putter := &recordingPutter{}
	store := NewS3AudioStoreWithClient(putter, "bucket", "/briefings/")

	key, err := store.PutAudio(context.Background(), "b-1", local)
	if err != nil {
		t.Fatalf("PutAudio returned error: %v", err)
	}
	if key != "briefings/b-1.mp3" || putter.key != key || putter.bucket != "bucket" {
		t.Fatalf("unexpected key %s / %s", key, putter.key)
	}
	if string(putter.body) != "audio" {
		t.Fatalf("unexpected body %q", putter.body)
	}
}

func TestPutAudioPropagatesErrors(t *testing.T) {
	t.Parallel()

	store := NewS3AudioStoreWithClient(&recordingPutter{}, "bucket", "")
	if _, err := store.PutAudio(context.Background(), "b-1", filepath.Join(t.TempDir(), "missing.mp3")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	local := filepath.Join(t.TempDir(), "a.mp3")
	if err := os.WriteFile(local, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	boom := errors.New("access denied")
	store = NewS3AudioStoreWithClient(&recordingPutter{err: boom}, "bucket", "")
	if _, err := store.PutAudio(context.Background(), "b-1", local); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped put error, got %v", err)
	}
}
