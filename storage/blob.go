package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/blang/semver"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/clbarnes/multiscale-read/msread"
)

func init() {
	ver, err := semver.Make("0.1.0")
	if err != nil {
		msread.Errorf("Unable to make semver for blob storage engines: %v\n", err)
	}
	for scheme, desc := range map[string]string{
		"file": "Local filesystem",
		"mem":  "In-memory blobs",
		"gs":   "Google Cloud Storage",
		"s3":   "Amazon S3",
	} {
		RegisterEngine(blobEngine{scheme, desc, ver})
	}
}

// blobEngine opens gocloud.dev blob buckets for one URL scheme.
type blobEngine struct {
	scheme string
	desc   string
	semver semver.Version
}

func (e blobEngine) GetName() string {
	return e.scheme
}

func (e blobEngine) GetDescription() string {
	return e.desc
}

func (e blobEngine) GetSemVer() semver.Version {
	return e.semver
}

func (e blobEngine) String() string {
	return fmt.Sprintf("%s [%s]", e.scheme, e.semver)
}

// NewStore opens a read-only view onto the bucket named by the URL.  For
// cloud schemes a path after the bucket name becomes a key prefix, so
// "gs://bucket/volumes/em" addresses the subtree under "volumes/em/".
func (e blobEngine) NewStore(ctx context.Context, url string) (Store, error) {
	ref := url
	var prefix string
	switch e.scheme {
	case "file":
		path := strings.TrimPrefix(url, "file://")
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		url = "file://" + filepath.ToSlash(abs)
	case "gs", "s3":
		rest := strings.TrimPrefix(url, e.scheme+"://")
		if i := strings.Index(rest, "/"); i >= 0 {
			prefix = strings.Trim(rest[i:], "/")
			url = e.scheme + "://" + rest[:i]
		}
	}
	msread.Infof("Trying to open %s store @ %q ...\n", e.desc, ref)
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("can't open store @ %q: %v", ref, err)
	}
	if prefix != "" {
		bucket = blob.PrefixedBucket(bucket, prefix+"/")
	}
	return &blobStore{ref: ref, bucket: bucket}, nil
}

// blobStore implements Store on a gocloud blob bucket.
type blobStore struct {
	ref    string
	bucket *blob.Bucket
}

func (s *blobStore) ReadAll(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %q in %s", ErrKeyNotFound, key, s.ref)
		}
		return nil, err
	}
	return data, nil
}

func (s *blobStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.bucket.Exists(ctx, key)
}

func (s *blobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (s *blobStore) Close() error {
	return s.bucket.Close()
}

func (s *blobStore) String() string {
	return s.ref
}

// MemStore is a writable in-memory store, mostly useful for tests.
type MemStore struct {
	blobStore
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{blobStore{
		ref:    "mem://",
		bucket: memblob.OpenBucket(nil),
	}}
}

// WriteAll stores a value under the given key, creating or replacing it.
func (s *MemStore) WriteAll(ctx context.Context, key string, data []byte) error {
	return s.bucket.WriteAll(ctx, key, data, nil)
}
