package configuration

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configYAML = `
log:
  level: debug
http:
  addr: :6000
storage:
  s3:
    bucket: images
    region: us-east-1
uploads:
  timeout: 2h
  sweepinterval: 10m
`

func TestParse(t *testing.T) {
	config, err := Parse(strings.NewReader(configYAML))
	require.NoError(t, err)

	assert.Equal(t, Loglevel("debug"), config.Log.Level)
	assert.Equal(t, ":6000", config.HTTP.Addr)
	assert.Equal(t, "s3", config.Storage.Type())
	assert.Equal(t, "images", config.Storage.Parameters()["bucket"])
	assert.Equal(t, 2*time.Hour, config.Uploads.Timeout)
	assert.Equal(t, 10*time.Minute, config.Uploads.SweepInterval)
}

func TestParseDefaults(t *testing.T) {
	config, err := Parse(strings.NewReader("storage:\n  inmemory: {}\n"))
	require.NoError(t, err)

	assert.Equal(t, ":5000", config.HTTP.Addr)
	assert.Equal(t, Loglevel("info"), config.Log.Level)
	assert.Equal(t, 24*time.Hour, config.Uploads.Timeout)
	assert.Equal(t, time.Hour, config.Uploads.SweepInterval)
}

func TestParseRejectsInvalidLoglevel(t *testing.T) {
	_, err := Parse(strings.NewReader("log:\n  level: loud\nstorage:\n  inmemory: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid loglevel")
}

func TestParseRejectsMultipleStorageTypes(t *testing.T) {
	_, err := Parse(strings.NewReader("storage:\n  inmemory: {}\n  s3:\n    bucket: b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one storage type")
}

func TestParseRequiresStorage(t *testing.T) {
	_, err := Parse(strings.NewReader("http:\n  addr: :5000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no storage configuration")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REGISTRY_HTTP_ADDR", ":7000")
	t.Setenv("REGISTRY_LOG_LEVEL", "WARN")
	t.Setenv("REGISTRY_UPLOADS_TIMEOUT", "45m")

	config, err := Parse(strings.NewReader(configYAML))
	require.NoError(t, err)

	assert.Equal(t, ":7000", config.HTTP.Addr)
	assert.Equal(t, Loglevel("warn"), config.Log.Level)
	assert.Equal(t, 45*time.Minute, config.Uploads.Timeout)
}
