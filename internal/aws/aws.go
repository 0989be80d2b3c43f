package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
)

type AWSClient struct {
	S3 *S3Client
}

func NewAWSClient(ctx context.Context) (*AWSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &AWSClient{
		S3: NewS3Client(cfg),
	}, nil
}
