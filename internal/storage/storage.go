package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/USA-RedDragon/rpc-tester/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Storage holds flat, named objects. Missing objects report fs.ErrNotExist.
type Storage interface {
	ReadFile(ctx context.Context, name string) ([]byte, error)
	WriteFile(ctx context.Context, name string, data []byte) error
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
	Close() error
}

func NewStorage(ctx context.Context, cfg *config.Config) (Storage, error) {
	scripts := cfg.Persistence.Scripts
	switch scripts.Driver {
	case config.ScriptsDriverFilesystem:
		err := os.MkdirAll(scripts.Directory, 0755)
		if err != nil {
			return nil, fmt.Errorf("failed to create scripts directory: %w", err)
		}
		return newFilesystem(scripts.Directory)
	case config.ScriptsDriverS3:
		opts := []func(*awsConfig.LoadOptions) error{}
		if scripts.S3.Region != "" {
			opts = append(opts, awsConfig.WithRegion(scripts.S3.Region))
		}
		awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = true
			if scripts.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(scripts.S3.Endpoint)
			}
		})
		return newS3(scripts.S3.Bucket, "", client), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", scripts.Driver)
	}
}
