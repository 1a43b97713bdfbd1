package archive

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/callshield/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *sc.Config {
	return &sc.Config{
		S3Region:       "eu-central-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "callshield",
	}
}

func stubSeams(t *testing.T) {
	t.Helper()
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPut := putObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		putObject = origPut
	})
}

func TestNewS3Archive_AppliesConfig(t *testing.T) {
	stubSeams(t)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-central-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "minioadmin", creds.AccessKeyID)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	a, err := NewS3Archive(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, "callshield", a.bucket)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Archive_LoadError(t *testing.T) {
	stubSeams(t)
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}

	_, err := NewS3Archive(context.Background(), testConfig())
	assert.ErrorContains(t, err, "no creds")
}

func TestStorageKey_Layout(t *testing.T) {
	key := StorageKey(time.Date(2025, 3, 7, 23, 0, 0, 0, time.FixedZone("x", -2*3600)))
	assert.Regexp(t, regexp.MustCompile(`^batches/2025/03/08/[0-9a-f-]{36}\.json\.zst$`), key)
}

func TestStore_PutsPayload(t *testing.T) {
	stubSeams(t)

	var got *s3.PutObjectInput
	var body []byte
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		got = in
		body, _ = io.ReadAll(in.Body)
		return &s3.PutObjectOutput{}, nil
	}

	a := &S3Archive{client: &s3.Client{}, bucket: "callshield", now: func() time.Time {
		return time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)
	}}
	key, err := a.Store(context.Background(), []byte("zstd"))
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "callshield", *got.Bucket)
	assert.Equal(t, key, *got.Key)
	assert.Contains(t, key, "batches/2025/01/02/")
	assert.Equal(t, int64(4), *got.ContentLength)
	assert.Equal(t, []byte("zstd"), body)
}

func TestStore_Error(t *testing.T) {
	stubSeams(t)
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("denied")
	}

	a := &S3Archive{client: &s3.Client{}, bucket: "b", now: time.Now}
	_, err := a.Store(context.Background(), []byte("x"))
	assert.ErrorContains(t, err, "denied")
}
