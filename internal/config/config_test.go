package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ambrosial/internal/changelog"
	"ambrosial/internal/manifest"
	"ambrosial/internal/store"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.False(t, c.DDAV)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.Equal(t, store.FormatJSON, c.Format())
	assert.Equal(t, filepath.Join("data", "orders.json"), c.StorePath())
	assert.Equal(t, SinkNone, c.ChangelogSink)
	assert.Equal(t, []string{"localhost:9092"}, c.Brokers())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "ambrosial.yaml")
	require.NoError(t, os.WriteFile(file, []byte("store_format: binary\ndata_dir: /srv/orders\nfetch_limit: 40\nddav: false\n"), 0o644))
	t.Setenv("AMBROSIAL_DDAV", "true")
	t.Setenv("AMBROSIAL_REQUEST_TIMEOUT", "3s")
	t.Setenv("AMBROSIAL_KAFKA_BOOTSTRAP", "k1:9092, k2:9092,")

	c, err := Load(file)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.True(t, c.DDAV)
	assert.Equal(t, 40, c.FetchLimit)
	assert.Equal(t, 3*time.Second, c.RequestTimeout)
	assert.Equal(t, filepath.Join("/srv/orders", "orders.pb.zst"), c.StorePath())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Brokers())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	for name, mutate := range map[string]func(*Config){
		"format":    func(c *Config) { c.StoreFormat = "msgpack" },
		"level":     func(c *Config) { c.LogLevel = "chatty" },
		"timeout":   func(c *Config) { c.RequestTimeout = 0 },
		"limit":     func(c *Config) { c.FetchLimit = -1 },
		"changelog": func(c *Config) { c.ChangelogSink = "s3" },
		"manifest":  func(c *Config) { c.ManifestSink = SinkNone },
		"brokers":   func(c *Config) { c.ChangelogSink = SinkKafka; c.KafkaBootstrap = " , " },
	} {
		c := base
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestSinks(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	c.DataDir = t.TempDir()

	w, err := c.ChangelogWriter()
	require.NoError(t, err)
	assert.Nil(t, w)

	c.ChangelogSink = SinkFile
	w, err = c.ChangelogWriter()
	require.NoError(t, err)
	assert.IsType(t, &changelog.FileWriter{}, w)

	c.ChangelogSink = SinkBoth
	w, err = c.ChangelogWriter()
	require.NoError(t, err)
	assert.IsType(t, &changelog.MultiWriter{}, w)

	assert.IsType(t, &manifest.FilesystemManifest{}, c.ManifestPublisher())
	assert.IsType(t, &manifest.FilesystemManifest{}, c.ManifestReader())

	c.ManifestSink = SinkKafka
	assert.IsType(t, &manifest.KafkaManifest{}, c.ManifestPublisher())
	assert.IsType(t, &manifest.KafkaReader{}, c.ManifestReader())
	c.ManifestSink = SinkBoth
	assert.IsType(t, &manifest.MultiPublisherImpl{}, c.ManifestPublisher())
}
