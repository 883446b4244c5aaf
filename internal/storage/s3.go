package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3 struct {
	root     string
	bucket   string
	s3Client *s3.Client
}

func newS3(bucket, root string, s3Client *s3.Client) *S3 {
	return &S3{
		bucket:   bucket,
		root:     root,
		s3Client: s3Client,
	}
}

func (s *S3) key(name string) string {
	return path.Join(s.root, name)
}

func (s *S3) Close() error {
	return nil
}

func (s *S3) ReadFile(ctx context.Context, name string) ([]byte, error) {
	res, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		return nil, fmt.Errorf("failed to get %s: %w", name, err)
	}
	defer res.Body.Close()
	return io.ReadAll(res.Body)
}

func (s *S3) WriteFile(ctx context.Context, name string, data []byte) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", name, err)
	}
	return nil
}

// Remove reports fs.ErrNotExist for missing objects, which S3 itself does
// not.
func (s *S3) Remove(ctx context.Context, name string) error {
	_, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
		}
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

func (s *S3) List(ctx context.Context) ([]string, error) {
	prefix := ""
	if s.root != "" {
		prefix = strings.TrimSuffix(s.root, "/") + "/"
	}
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, object := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(object.Key), prefix)
			if name != "" && !strings.Contains(name, "/") {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
