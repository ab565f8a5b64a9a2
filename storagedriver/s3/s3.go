// Package s3 provides a storagedriver.StorageDriver implementation backed
// by Amazon S3 or any S3-compatible object store.
//
// S3 guarantees read-after-write consistency for single keys, which is the
// only ordering the registry's stores rely on. List results are returned in
// lexical key order, which the tag store depends on for pagination.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/anchorage/registry/storagedriver"
	"github.com/anchorage/registry/storagedriver/factory"
)

const driverName = "s3"

// listMax is the largest page size a single S3 list call may request.
const listMax = 1000

func init() {
	factory.Register(driverName, &s3DriverFactory{})
}

type s3DriverFactory struct{}

func (f *s3DriverFactory) Create(parameters map[string]interface{}) (storagedriver.StorageDriver, error) {
	params, err := fromParameters(parameters)
	if err != nil {
		return nil, err
	}
	return New(params)
}

// DriverParameters holds the configuration needed to construct the driver.
type DriverParameters struct {
	AccessKey      string
	SecretKey      string
	Bucket         string
	Region         string
	RegionEndpoint string
	ForcePathStyle bool
	RootDirectory  string
}

func fromParameters(parameters map[string]interface{}) (DriverParameters, error) {
	params := DriverParameters{}

	stringParam := func(key string) string {
		if v, ok := parameters[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	}

	params.AccessKey = stringParam("accesskey")
	params.SecretKey = stringParam("secretkey")
	params.Bucket = stringParam("bucket")
	params.Region = stringParam("region")
	params.RegionEndpoint = stringParam("regionendpoint")
	params.RootDirectory = stringParam("rootdirectory")

	if v, ok := parameters["forcepathstyle"]; ok {
		b, ok := v.(bool)
		if !ok {
			return params, fmt.Errorf("the forcepathstyle parameter must be a boolean")
		}
		params.ForcePathStyle = b
	}

	if params.Bucket == "" {
		return params, fmt.Errorf("no bucket parameter provided")
	}
	if params.Region == "" && params.RegionEndpoint == "" {
		return params, fmt.Errorf("no region parameter provided")
	}

	return params, nil
}

// Driver is a StorageDriver over a single S3 bucket.
type Driver struct {
	s3            *s3.S3
	uploader      *s3manager.Uploader
	bucket        string
	rootDirectory string
}

var _ storagedriver.StorageDriver = &Driver{}

// New constructs a Driver from parameters, dialing the configured endpoint.
func New(params DriverParameters) (*Driver, error) {
	awsConfig := aws.NewConfig().
		WithRegion(params.Region).
		WithS3ForcePathStyle(params.ForcePathStyle)

	if params.RegionEndpoint != "" {
		awsConfig = awsConfig.WithEndpoint(params.RegionEndpoint)
	}

	if params.AccessKey != "" && params.SecretKey != "" {
		awsConfig = awsConfig.WithCredentials(
			credentials.NewStaticCredentials(params.AccessKey, params.SecretKey, ""))
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}

	client := s3.New(sess)

	return &Driver{
		s3:            client,
		uploader:      s3manager.NewUploaderWithClient(client),
		bucket:        params.Bucket,
		rootDirectory: strings.Trim(params.RootDirectory, "/"),
	}, nil
}

func (d *Driver) Name() string {
	return driverName
}

// s3Key maps a storage key onto the bucket, honoring the configured root
// directory.
func (d *Driver) s3Key(path string) string {
	if d.rootDirectory == "" {
		return path
	}
	return d.rootDirectory + "/" + path
}

func (d *Driver) keyPath(s3Key string) string {
	if d.rootDirectory == "" {
		return s3Key
	}
	return strings.TrimPrefix(s3Key, d.rootDirectory+"/")
}

func (d *Driver) GetContent(ctx context.Context, path string) ([]byte, error) {
	rc, err := d.Reader(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (d *Driver) PutContent(ctx context.Context, path string, content []byte, contentType string) error {
	_, err := d.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.s3Key(path)),
		Body:        bytes.NewReader(content),
		ContentType: contentTypeOrDefault(contentType),
	})
	return err
}

func (d *Driver) Reader(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := d.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.s3Key(path)),
	})
	if err != nil {
		return nil, d.mapError(path, err)
	}
	return resp.Body, nil
}

func (d *Driver) ReadRange(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error) {
	resp, err := d.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.s3Key(path)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	})
	if err != nil {
		return nil, d.mapError(path, err)
	}
	return resp.Body, nil
}

func (d *Driver) PutReader(ctx context.Context, path string, content io.Reader, size int64, contentType string) error {
	_, err := d.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.s3Key(path)),
		Body:        content,
		ContentType: contentTypeOrDefault(contentType),
	})
	return err
}

func (d *Driver) Stat(ctx context.Context, path string) (storagedriver.FileInfo, error) {
	resp, err := d.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.s3Key(path)),
	})
	if err != nil {
		return storagedriver.FileInfo{}, d.mapError(path, err)
	}

	fi := storagedriver.FileInfo{Path: path}
	if resp.ContentLength != nil {
		fi.Size = *resp.ContentLength
	}
	if resp.ContentType != nil {
		fi.ContentType = *resp.ContentType
	}
	if resp.LastModified != nil {
		fi.ModTime = *resp.LastModified
	}
	return fi, nil
}

func (d *Driver) Exists(ctx context.Context, path string) (bool, error) {
	_, err := d.Stat(ctx, path)
	if err != nil {
		if storagedriver.IsPathNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Driver) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	err := d.s3.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.bucket),
		Prefix:  aws.String(d.s3Key(prefix)),
		MaxKeys: aws.Int64(listMax),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, d.keyPath(*obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return keys, nil
}

func (d *Driver) ListPage(ctx context.Context, prefix string, n int, last string) ([]string, bool, error) {
	max := int64(n)
	if n < 0 || max > listMax {
		max = listMax
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.bucket),
		Prefix:  aws.String(d.s3Key(prefix)),
		MaxKeys: aws.Int64(max),
	}
	if last != "" {
		input.StartAfter = aws.String(d.s3Key(last))
	}

	resp, err := d.s3.ListObjectsV2WithContext(ctx, input)
	if err != nil {
		return nil, false, err
	}

	keys := make([]string, 0, len(resp.Contents))
	for _, obj := range resp.Contents {
		keys = append(keys, d.keyPath(*obj.Key))
	}

	truncated := resp.IsTruncated != nil && *resp.IsTruncated
	return keys, truncated, nil
}

func (d *Driver) Delete(ctx context.Context, path string) error {
	if exists, err := d.Exists(ctx, path); err != nil {
		return err
	} else if !exists {
		return storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
	}

	_, err := d.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.s3Key(path)),
	})
	return err
}

func (d *Driver) mapError(path string, err error) error {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
		}
	}
	return err
}

func contentTypeOrDefault(contentType string) *string {
	if contentType == "" {
		return aws.String("application/octet-stream")
	}
	return aws.String(contentType)
}
