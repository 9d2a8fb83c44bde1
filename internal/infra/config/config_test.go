package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustLoadDefaults(t *testing.T) {
	cfg := MustLoad(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.EqualValues(t, 5, cfg.MaxUploadMb)
	assert.Equal(t, 15*time.Minute, cfg.SignURLTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Empty(t, cfg.Blob.Bucket, "missing blob settings are not fatal")
}

func TestMustLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
max_upload_mb: 10
sign_url_ttl: 5m
redis:
  addr: "redis:6379"
blob:
  endpoint: "minio:9000"
  bucket: "tasks"
`), 0o600))

	cfg := MustLoad(path)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.EqualValues(t, 10, cfg.MaxUploadMb)
	assert.Equal(t, 5*time.Minute, cfg.SignURLTTL)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "minio:9000", cfg.Blob.Endpoint)
	assert.Equal(t, "tasks", cfg.Blob.Bucket)
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
blob:
  bucket: "from-yaml"
`), 0o600))

	t.Setenv("PORT", "3000")
	t.Setenv("REDIS_ADDR", "remote:6379")
	t.Setenv("AWS_S3_BUCKET", "from-env")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA123")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg := MustLoad(path)

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "remote:6379", cfg.Redis.Addr)
	assert.Equal(t, "from-env", cfg.Blob.Bucket)
	assert.Equal(t, "AKIA123", cfg.Blob.AccessKeyID)
	assert.Equal(t, "eu-west-1", cfg.Blob.Region)
}

func TestPickEnvOrder(t *testing.T) {
	t.Setenv("AWS_S3_BUCKET", "")
	t.Setenv("S3_BUCKET", "second-choice")
	t.Setenv("BUCKET_NAME", "third-choice")

	cfg := MustLoad("")
	assert.Equal(t, "second-choice", cfg.Blob.Bucket)
}
