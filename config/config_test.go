package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  service_updated_topic_name: "service.updated"
  signature_captured_topic_name: "signature.captured"
redis:
  host: "localhost"
  port: 6379
storage:
  base_url: "http://localhost:54321"
  api_key: "secret"
  signature_bucket: "signatures"
servicebox:
  http_addr: ":8080"
  kafka_consumer_group: "service-api"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "service.updated", cfg.Kafka.ServiceUpdatedTopicName)
	require.Equal(t, "signature.captured", cfg.Kafka.SignatureCapturedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, "signatures", cfg.Storage.SignatureBucket)
	require.Equal(t, ":8080", cfg.ServiceBox.HTTPAddr)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
