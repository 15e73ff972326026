package collect

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func LoadAWSConfig(ctx context.Context, profile string) (aws.Config, error) {
	if profile == "" || profile == "default" {
		return config.LoadDefaultConfig(ctx)
	}
	return config.LoadDefaultConfig(ctx, config.WithSharedConfigProfile(profile))
}

// Store writes collected to dst, either an s3://bucket/prefix path or a local
// directory, and returns the written location.
func Store(ctx context.Context, collected *Collected, dst, profile string) (string, error) {
	s3Path, _ := ParseS3(dst)
	if s3Path == nil {
		return StoreToPath(ctx, collected, dst)
	}

	cfg, err := LoadAWSConfig(ctx, profile)
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %v", err)
	}

	outPath, err := StoreToS3(ctx, collected, s3.NewFromConfig(cfg), s3Path)
	if err != nil {
		return "", fmt.Errorf("failed to store data to S3: %w", err)
	}

	return outPath, nil
}
