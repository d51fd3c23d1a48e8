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
  order_status_changed_topic_name: "order.status-changed"
redis:
  host: "localhost"
  port: 6379
elogist:
  endpoint: "https://els.elogist.cz/ws"
  username: "wse"
  password: "secret"
  project_id: "WSE1"
shop:
  base_url: "https://shop.example.cz"
  consumer_key: "ck_x"
  consumer_secret: "cs_x"
feed:
  url: "https://shop.example.cz/export/products.xml"
  schedule: "0 */2 * * *"
  lock_ttl_seconds: 600
sync:
  http_addr: ":8080"
  kafka_consumer_group: "sync-api"
  webhook_api_key: "k"
  status_poll_interval_seconds: 600
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "order.status-changed", cfg.Kafka.OrderStatusChangedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, "WSE1", cfg.Elogist.ProjectID)
	require.Equal(t, "ck_x", cfg.Shop.ConsumerKey)
	require.Equal(t, 600, cfg.Feed.LockTTLSeconds)
	require.Equal(t, ":8080", cfg.Sync.HTTPAddr)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
