package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, obj := range in.Delete.Objects {
		delete(f.objects, aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for key := range f.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func exerciseFilesystem(t *testing.T, fsys Filesystem) {
	t.Helper()
	ctx := context.Background()

	if err := fsys.MkdirAll(ctx, "previews", 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, name := range []string{"previews/7-1920x1080.png", "previews/7-320x560.png", "previews/70-1920x1080.png"} {
		if err := fsys.PutContents(ctx, name, []byte("png")); err != nil {
			t.Fatalf("PutContents %s: %v", name, err)
		}
	}

	matches, err := fsys.Glob(ctx, "previews/7-*.png")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	sort.Strings(matches)
	if len(matches) != 2 || matches[0] != "previews/7-1920x1080.png" || matches[1] != "previews/7-320x560.png" {
		t.Fatalf("unexpected glob matches %v", matches)
	}

	if err := fsys.Delete(ctx, "previews/7-320x560.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := fsys.Delete(ctx, "previews/7-320x560.png"); err != nil {
		t.Fatalf("Delete missing file should be a no-op: %v", err)
	}
	if matches, _ := fsys.Glob(ctx, "previews/7-*.png"); len(matches) != 1 {
		t.Fatalf("expected one remaining match, got %v", matches)
	}

	if err := fsys.RemoveAll(ctx, "previews"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if matches, _ := fsys.Glob(ctx, "previews/*"); len(matches) != 0 {
		t.Fatalf("expected nothing after RemoveAll, got %v", matches)
	}

	if err := fsys.PutContents(ctx, "../escape.png", nil); err == nil {
		t.Fatal("expected error for path escaping the root")
	}
}

func TestLocalFilesystem(t *testing.T) {
	root := t.TempDir()
	exerciseFilesystem(t, NewLocal(root))
	if _, err := os.Stat(filepath.Join(root, "previews")); !os.IsNotExist(err) {
		t.Fatalf("expected previews dir removed, stat err=%v", err)
	}
}

func TestLocalPutContentsLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	fsys := NewLocal(root)
	if err := fsys.PutContents(context.Background(), "a.png", []byte("one")); err != nil {
		t.Fatalf("PutContents: %v", err)
	}
	if err := fsys.PutContents(context.Background(), "a.png", []byte("two")); err != nil {
		t.Fatalf("PutContents overwrite: %v", err)
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 1 || entries[0].Name() != "a.png" {
		t.Fatalf("unexpected directory contents %v", entries)
	}
	data, _ := os.ReadFile(filepath.Join(root, "a.png"))
	if string(data) != "two" {
		t.Fatalf("expected overwritten contents, got %q", data)
	}
}

func TestS3Filesystem(t *testing.T) {
	fake := newFakeS3()
	exerciseFilesystem(t, NewS3(fake, "bucket", "/site-1/"))

	if err := NewS3(fake, "bucket", "site-1").PutContents(context.Background(), "9-800x360.png", []byte("x")); err != nil {
		t.Fatalf("PutContents: %v", err)
	}
	keys := fake.keys()
	if len(keys) != 1 || keys[0] != "site-1/9-800x360.png" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if fake.types[keys[0]] != "image/png" {
		t.Fatalf("unexpected content type %q", fake.types[keys[0]])
	}
}
