// Package minio 把输出分片写入 S3 兼容对象存储（MinIO）。
//
// 对象存储没有 O_EXCL：写入前以 StatObject 探测键是否存在，存在即返回
// ErrFileExists。探测与上传之间不是原子的，同一前缀仅应有单个写者。
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"logsplit/internal/codec"
	"logsplit/pkg/contract"
)

// Options: MinIO 连接与对象命名选项。
type Options struct {
	Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
	AccessKey string `json:"access_key" mapstructure:"access_key"`
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	// Prefix: 对象键前缀（可空）。
	Prefix string `json:"prefix" mapstructure:"prefix"`
	UseSSL bool   `json:"use_ssl" mapstructure:"use_ssl"`
	// Compress: 输出编码（none|gzip|zstd|lz4|xz）。
	Compress string `json:"compress,omitempty" mapstructure:"compress"`
}

// objectAPI 为 *minio.Client 的最小子集，便于替换。
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Store struct {
	client objectAPI
	bucket string
	prefix string
	codec  codec.Codec

	bucketOnce sync.Once
	bucketErr  error
}

var _ contract.Writer = (*Store)(nil)

// New 创建 MinIO 客户端；存储桶在首次写入时检查/创建。
func New(opts *Options) (*Store, error) {
	if opts == nil || strings.TrimSpace(opts.Endpoint) == "" {
		return nil, fmt.Errorf("minio writer: endpoint required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio writer: create client: %w", err)
	}
	return newStore(client, opts)
}

func newStore(client objectAPI, opts *Options) (*Store, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("minio writer: bucket required")
	}
	c, err := codec.Lookup(opts.Compress)
	if err != nil {
		return nil, err
	}
	return &Store{
		client: client,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
		codec:  c,
	}, nil
}

// Key 返回 id 对应的对象键（含前缀与编码扩展名）。
func (s *Store) Key(id contract.ArtifactID) (string, error) {
	k := string(contract.NormalizeFileID(string(id)))
	k = strings.TrimPrefix(k, "/")
	if k == "." || k == "" || k == ".." || strings.HasPrefix(k, "../") {
		return "", contract.ErrPathInvalid
	}
	if s.prefix != "" {
		k = path.Join(s.prefix, k)
	}
	return k + s.codec.Ext(), nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	s.bucketOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.bucketErr = fmt.Errorf("%w: check bucket %s: %w", contract.ErrIO, s.bucket, err)
			return
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
				s.bucketErr = fmt.Errorf("%w: create bucket %s: %w", contract.ErrIO, s.bucket, err)
			}
		}
	})
	return s.bucketErr
}

// Write 上传一个分片；对象已存在返回 ErrFileExists，其他失败返回 ErrIO。
func (s *Store) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := s.Key(id)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if err := s.checkAbsent(ctx, key); err != nil {
		return err
	}

	// PutObject 需要确定长度：先在内存中完成编码
	var buf bytes.Buffer
	enc, err := s.codec.Wrap(&buf)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, r); err != nil {
		return fmt.Errorf("%w: encode %s: %w", contract.ErrIO, key, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%w: encode %s: %w", contract.ErrIO, key, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: s.codec.ContentType()})
	if err != nil {
		return fmt.Errorf("%w: put %s/%s: %w", contract.ErrIO, s.bucket, key, err)
	}
	return nil
}

func (s *Store) checkAbsent(ctx context.Context, key string) error {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return fmt.Errorf("%w: %s/%s", contract.ErrFileExists, s.bucket, key)
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return nil
	}
	return fmt.Errorf("%w: stat %s/%s: %w", contract.ErrIO, s.bucket, key, err)
}
