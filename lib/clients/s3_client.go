package clients

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ClientInterface defines the S3 operations used by the Lambdas.
type S3ClientInterface interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	UploadFile(ctx context.Context, key, localPath string) error
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// S3Client wraps the AWS S3 client with our custom methods.
type S3Client struct {
	svc           *s3.Client
	presignClient *s3.PresignClient
	uploader      *manager.Uploader
	bucket        string
}

// NewS3Client creates a new S3 client instance.
func NewS3Client(isLocal bool, bucket string) S3ClientInterface {
	ctx := context.Background()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		panic("failed to load AWS configuration: " + err.Error())
	}

	var svc *s3.Client
	if isLocal {
		// LocalStack configuration
		svc = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String("http://docker.for.mac.host.internal:4566")
			o.UsePathStyle = true
		})
	} else {
		svc = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	// Archives can run to several GiB; two concurrent multipart workers
	// keep memory flat within the Lambda limit.
	uploader := manager.NewUploader(svc, func(u *manager.Uploader) {
		u.Concurrency = 2
	})

	return &S3Client{
		svc:           svc,
		presignClient: s3.NewPresignClient(svc),
		uploader:      uploader,
		bucket:        bucket,
	}
}

// GetObject reads an object fully into memory.
func (client *S3Client) GetObject(ctx context.Context, key string) ([]byte, error) {
	out, err := client.svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(client.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// UploadFile streams a local file to S3 using multipart upload.
func (client *S3Client) UploadFile(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = client.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(client.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	return err
}

// GenerateDownloadURL creates a presigned URL for downloading a file from S3.
func (client *S3Client) GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	presignResult, err := client.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(client.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))

	if err != nil {
		return "", err
	}

	return presignResult.URL, nil
}

// DeleteObject deletes an object from S3.
func (client *S3Client) DeleteObject(ctx context.Context, key string) error {
	_, err := client.svc.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(client.bucket),
		Key:    aws.String(key),
	})

	return err
}
