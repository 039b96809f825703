package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/dany616/bgenius-background-processor/config"
)

// S3Store 把结果图片放到 S3 bucket 的 prefix 下
type S3Store struct {
	svc        *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	bucket     string
	prefix     string
}

func NewS3Store(cfg *config.StorageConfig) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("s3 bucket not configured")
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.S3Region),
	})
	if err != nil {
		return nil, fmt.Errorf("set up aws session: %w", err)
	}
	return &S3Store{
		svc:        s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
		bucket:     cfg.S3Bucket,
		prefix:     cfg.S3Prefix,
	}, nil
}

func (s *S3Store) key(filename string) string {
	return path.Join(s.prefix, filename)
}

func (s *S3Store) Save(ctx context.Context, data []byte, ext string) (string, error) {
	filename := newFilename(ext)
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(filename)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(MimeType(strings.TrimPrefix(path.Ext(filename), "."))),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	return filename, nil
}

func (s *S3Store) Load(ctx context.Context, filename string) ([]byte, error) {
	if !ValidFilename(filename) {
		return nil, ErrImageNotFound
	}
	buf := aws.NewWriteAtBuffer(nil)
	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(filename)),
	})
	if isS3NotFound(err) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", filename, err)
	}
	return buf.Bytes(), nil
}

func (s *S3Store) Exists(ctx context.Context, filename string) bool {
	if !ValidFilename(filename) {
		return false
	}
	_, err := s.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(filename)),
	})
	return err == nil
}

func (s *S3Store) Cleanup(ctx context.Context, before time.Time) (int, error) {
	var stale []string
	err := s.svc.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, o := range page.Contents {
			if o.LastModified != nil && o.LastModified.Before(before) {
				stale = append(stale, aws.StringValue(o.Key))
			}
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", s.bucket, err)
	}

	removed := 0
	for _, key := range stale {
		_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return removed, fmt.Errorf("delete %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
