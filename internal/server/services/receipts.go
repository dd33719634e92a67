package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	sc "github.com/dmitrijs2005/walletsync/internal/server/config"
)

const presignValidity = 15 * time.Minute

// ReceiptService hands out presigned S3 URLs so receipt images move
// directly between the client and object storage, bypassing the API
// server.
type ReceiptService struct {
	config *sc.Config
}

func NewReceiptService(config *sc.Config) *ReceiptService {
	return &ReceiptService{config: config}
}

func receiptStorageKey(ownerID string) string {
	d := time.Now()
	return fmt.Sprintf("receipts/%s/%d/%d/%d/%v", ownerID, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ReceiptService) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})
	return s3.NewPresignClient(client), nil
}

// PresignPut returns a fresh storage key and a presigned PUT URL for it.
func (s *ReceiptService) PresignPut(ctx context.Context, ownerID string) (key, url string, err error) {
	pc, err := s.presignClient(ctx)
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key = receiptStorageKey(ownerID)

	req, err := pc.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignValidity))
	if err != nil {
		return "", "", err
	}
	return key, req.URL, nil
}

// PresignGet returns a presigned GET URL for an existing storage key.
func (s *ReceiptService) PresignGet(ctx context.Context, key string) (string, error) {
	pc, err := s.presignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	req, err := pc.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignValidity))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
