// Package hub pushes datasets to and pulls them from a remote
// S3-compatible content store, keyed by a repository identifier. The wire
// layout mirrors the on-disk layout of package persist, so a pulled
// repository is simply loaded from the local cache after download.
package hub

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/leadblacktech/datasets/pkg/config"
	"github.com/leadblacktech/datasets/pkg/dataset"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/logger"
	"github.com/leadblacktech/datasets/pkg/persist"
)

// Client talks to one bucket of a content store.
type Client struct {
	mc       *minio.Client
	bucket   string
	cacheDir string
	limiter  *rate.Limiter
}

// NewClient builds a client from the engine's hub configuration.
func NewClient(cfg *config.EngineConfig) (*Client, error) {
	hc := cfg.Hub
	if hc.Endpoint == "" || hc.Bucket == "" {
		return nil, dserrors.New(dserrors.ErrorTypeConfig, "hub endpoint and bucket are required")
	}
	mc, err := minio.New(hc.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(hc.AccessKeyID, hc.SecretAccessKey, ""),
		Secure: hc.UseSSL,
	})
	if err != nil {
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeConfig, "creating hub client")
	}
	rps := rate.Limit(hc.RequestsPerSec)
	if rps <= 0 {
		rps = rate.Inf
	}
	return &Client{
		mc:       mc,
		bucket:   hc.Bucket,
		cacheDir: cfg.CacheDir,
		limiter:  rate.NewLimiter(rps, 1),
	}, nil
}

// Push saves the dataset locally and uploads every file of the saved
// layout under the repository prefix.
func (c *Client) Push(ctx context.Context, d *dataset.Dataset, repoID string) error {
	dir := filepath.Join(c.cacheDir, "push", repoID)
	if err := persist.Save(d, dir, persist.Options{Compress: true}); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "listing saved dataset")
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := c.putFile(ctx, filepath.Join(dir, e.Name()), path.Join(repoID, e.Name())); err != nil {
			return err
		}
	}
	logger.Info("dataset pushed",
		zap.String("repo", repoID),
		zap.Int("rows", d.Len()))
	return nil
}

func (c *Client) putFile(ctx context.Context, localPath, key string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeResourceExhausted, "rate limiter")
	}
	data, err := os.ReadFile(localPath) //nolint:gosec // path derives from our own layout
	if err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "reading file for upload")
	}
	_, err = c.mc.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{})
	if err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "uploading object").WithDetail("key", key)
	}
	return nil
}

// Pull downloads a repository into the local cache and loads it.
func (c *Client) Pull(ctx context.Context, repoID string) (*dataset.Dataset, error) {
	dir := filepath.Join(c.cacheDir, "pull", repoID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "creating cache directory")
	}

	found := false
	for obj := range c.mc.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    repoID + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, dserrors.Wrap(obj.Err, dserrors.ErrorTypeIO, "listing repository")
		}
		found = true
		if err := c.getFile(ctx, obj.Key, filepath.Join(dir, path.Base(obj.Key))); err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, dserrors.Newf(dserrors.ErrorTypeNotFound, "repository %q not found", repoID)
	}

	d, err := persist.Load(dir)
	if err != nil {
		return nil, err
	}
	logger.Info("dataset pulled",
		zap.String("repo", repoID),
		zap.Int("rows", d.Len()))
	return d, nil
}

func (c *Client) getFile(ctx context.Context, key, localPath string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeResourceExhausted, "rate limiter")
	}
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "downloading object").WithDetail("key", key)
	}
	defer obj.Close()

	f, err := os.Create(localPath) //nolint:gosec // path derives from our own layout
	if err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "creating cache file")
	}
	defer f.Close()
	if _, err := io.Copy(f, obj); err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "writing cache file")
	}
	return nil
}
