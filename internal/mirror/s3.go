package mirror

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	apperrors "muwi-backup/internal/errors"
)

// S3Provider mirrors copies into an S3 bucket
type S3Provider struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3Provider creates a new S3Provider instance
func NewS3Provider(config *S3Config, prefix string) (*S3Provider, error) {
	if config == nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation, "S3 mirror configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation, "invalid S3 mirror configuration", err)
	}

	awsConfig := &aws.Config{
		Region:      aws.String(config.Region),
		Credentials: credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, ""),
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(config.ForcePathStyle)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, storageError("failed to create AWS session", err)
	}

	return &S3Provider{
		client: s3.New(sess),
		bucket: config.Bucket,
		prefix: prefix,
	}, nil
}

// Put uploads a copy
func (s3p *S3Provider) Put(ctx context.Context, name string, content []byte) error {
	_, err := s3p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s3p.bucket),
		Key:           aws.String(s3p.prefix + name),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		return storageError("failed to upload mirror copy to S3", err)
	}
	return nil
}

// Get downloads a copy
func (s3p *S3Provider) Get(ctx context.Context, name string) ([]byte, error) {
	result, err := s3p.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3p.bucket),
		Key:    aws.String(s3p.prefix + name),
	})
	if err != nil {
		return nil, storageError("failed to download mirror copy from S3", err)
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, storageError("failed to read mirror copy from S3", err)
	}
	return content, nil
}

// List returns the copies under the prefix
func (s3p *S3Provider) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s3p.bucket),
		Prefix: aws.String(s3p.prefix),
	}

	err := s3p.client.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				name := strings.TrimPrefix(aws.StringValue(obj.Key), s3p.prefix)
				if name == "" || strings.Contains(name, "/") {
					continue
				}
				objects = append(objects, Object{
					Name:    name,
					Size:    aws.Int64Value(obj.Size),
					ModTime: aws.TimeValue(obj.LastModified),
				})
			}
			return true
		})
	if err != nil {
		return nil, storageError("failed to list mirror copies in S3", err)
	}
	return objects, nil
}

// Delete removes the named copies in a single request
func (s3p *S3Provider) Delete(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	identifiers := make([]*s3.ObjectIdentifier, 0, len(names))
	for _, name := range names {
		identifiers = append(identifiers, &s3.ObjectIdentifier{Key: aws.String(s3p.prefix + name)})
	}

	_, err := s3p.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s3p.bucket),
		Delete: &s3.Delete{Objects: identifiers},
	})
	if err != nil {
		return storageError("failed to delete mirror copies from S3", err)
	}
	return nil
}

// Describe returns the bucket URL
func (s3p *S3Provider) Describe() string {
	return "s3://" + s3p.bucket + "/" + s3p.prefix
}
