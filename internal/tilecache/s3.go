package tilecache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/model"
	"github.com/willie68/go_argenmap/pkg/fileutils"
)

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accesskey"`
	SecretKey string `yaml:"secretkey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"usessl"`
}

// S3Cache stores the tiles in a s3 compatible bucket
type S3Cache struct {
	log    *slog.Logger
	client *minio.Client
	bucket string
	maxage int // in hours
}

func NewS3Cache(ctx context.Context, cfg Config) (*S3Cache, error) {
	s3 := cfg.S3
	if s3.Endpoint == "" || s3.Bucket == "" {
		return nil, errors.New("missing s3 endpoint or bucket")
	}
	client, err := minio.New(s3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s3.AccessKey, s3.SecretKey, ""),
		Secure: s3.UseSSL,
		Region: s3.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create minio client")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, s3.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "error checking bucket existence")
	}
	if !exists {
		err = client.MakeBucket(ctx, s3.Bucket, minio.MakeBucketOptions{Region: s3.Region})
		if err != nil {
			return nil, errors.Wrapf(err, "can't create bucket %s", s3.Bucket)
		}
	}
	return &S3Cache{
		log:    logging.New("s3cache"),
		client: client,
		bucket: s3.Bucket,
		maxage: cfg.MaxAge,
	}, nil
}

func (c *S3Cache) IsActive() bool {
	return true
}

func (c *S3Cache) Has(ctx context.Context, tile model.Tile) bool {
	info, err := c.client.StatObject(ctx, c.bucket, objectKey(tile), minio.StatObjectOptions{})
	if err != nil {
		return false
	}
	return !c.expired(info.LastModified)
}

func (c *S3Cache) Tile(ctx context.Context, tile model.Tile) (io.ReadCloser, bool) {
	obj, err := c.client.GetObject(ctx, c.bucket, objectKey(tile), minio.GetObjectOptions{})
	if err != nil {
		return nil, false
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			c.log.Error("error reading tile", "tile", tile.String(), "error", err)
		}
		return nil, false
	}
	if c.expired(info.LastModified) {
		obj.Close()
		return nil, false
	}
	return obj, true
}

func (c *S3Cache) Save(ctx context.Context, tile model.Tile, data io.Reader) error {
	if c.Has(ctx, tile) {
		return nil
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	_, err = c.client.PutObject(ctx, c.bucket, objectKey(tile), bytes.NewReader(buf), int64(len(buf)),
		minio.PutObjectOptions{ContentType: "image/png"})
	if err != nil {
		return errors.Wrapf(err, "failed to store tile %s", tile.String())
	}
	return nil
}

func (c *S3Cache) expired(modified time.Time) bool {
	if c.maxage <= 0 {
		return false
	}
	return time.Since(modified) > time.Duration(c.maxage)*time.Hour
}

func (c *S3Cache) Close() error {
	return nil
}

func objectKey(tile model.Tile) string {
	return fmt.Sprintf("%s/%d/%d/%d.png", fileutils.ValidPathName(tile.Layer), tile.Z, tile.X, tile.Y)
}
