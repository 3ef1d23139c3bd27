package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "0 17 * * THU", c.Pipeline.Schedule)
	assert.Equal(t, "America/Chicago", c.Pipeline.Timezone)
	assert.Equal(t, time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), c.HistoryStart())
	assert.Equal(t, filepath.Join("data/raw", "archive"), c.ArchiveRoot())
	assert.True(t, c.Server.Enabled)
	assert.False(t, c.Kafka.Enabled)
	assert.Equal(t, 8080, c.Server.Port)
}

func TestParseExplicitFalseOverridesDefault(t *testing.T) {
	c, err := Parse([]byte("environment: test\nserver:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.False(t, c.Server.Enabled)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad env":          "environment: moon\n",
		"bad timezone":     "environment: test\npipeline:\n  timezone: Mars/Olympus\n",
		"bad history":      "environment: test\npipeline:\n  history_start: 2005/01/01\n",
		"kafka no brokers": "environment: test\nkafka:\n  enabled: true\n",
		"timeout > ttl":    "environment: test\npipeline:\n  lock_ttl: 1m\n  run_timeout: 5m\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\n"), 0o644))

	t.Setenv("ENERGYPULL_RAW_DIR", "/srv/raw")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/raw", c.Paths.RawDir)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
