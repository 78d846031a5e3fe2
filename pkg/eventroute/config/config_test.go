package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventroute/pkg/eventroute/config"
)

func TestString(t *testing.T) {
	cfg := config.New(map[string]any{
		"name":  "eventroute",
		"count": 3,
	})

	assert.Equal(t, "eventroute", cfg.String("name", "fallback"))
	assert.Equal(t, "fallback", cfg.String("missing", "fallback"))
	assert.Equal(t, "fallback", cfg.String("count", "fallback"), "wrong type falls back")
}

func TestDuration(t *testing.T) {
	cfg := config.New(map[string]any{
		"str":     "30s",
		"int":     5,
		"float":   2.5,
		"native":  time.Minute,
		"invalid": "not-a-duration",
	})

	assert.Equal(t, 30*time.Second, cfg.Duration("str", time.Second))
	assert.Equal(t, 5*time.Second, cfg.Duration("int", time.Second))
	assert.Equal(t, 2500*time.Millisecond, cfg.Duration("float", time.Second))
	assert.Equal(t, time.Minute, cfg.Duration("native", time.Second))
	assert.Equal(t, time.Second, cfg.Duration("invalid", time.Second))
	assert.Equal(t, time.Second, cfg.Duration("missing", time.Second))
}

func TestBool(t *testing.T) {
	cfg := config.New(map[string]any{
		"on":  true,
		"str": "true",
	})

	assert.True(t, cfg.Bool("on", false))
	assert.False(t, cfg.Bool("str", false), "string true is not coerced")
	assert.True(t, cfg.Bool("missing", true))
}

func TestInt(t *testing.T) {
	cfg := config.New(map[string]any{
		"int":      7,
		"int64":    int64(8),
		"whole":    9.0,
		"fraction": 9.5,
	})

	assert.Equal(t, 7, cfg.Int("int", 0))
	assert.Equal(t, 8, cfg.Int("int64", 0))
	assert.Equal(t, 9, cfg.Int("whole", 0))
	assert.Equal(t, 0, cfg.Int("fraction", 0), "fractional float falls back")
	assert.Equal(t, 42, cfg.Int("missing", 42))
}

func TestStringSlice(t *testing.T) {
	cfg := config.New(map[string]any{
		"typed": []string{"a", "b"},
		"anys":  []any{"c", "d"},
		"mixed": []any{"e", 1},
	})

	assert.Equal(t, []string{"a", "b"}, cfg.StringSlice("typed", nil))
	assert.Equal(t, []string{"c", "d"}, cfg.StringSlice("anys", nil))
	assert.Nil(t, cfg.StringSlice("mixed", nil), "non-string element falls back")
	assert.Equal(t, []string{"x"}, cfg.StringSlice("missing", []string{"x"}))
}

func TestSub(t *testing.T) {
	cfg := config.New(map[string]any{
		"correlation": map[string]any{
			"group_ttl": "2m",
			"threshold": 3,
		},
		"scalar": 5,
	})

	corr := cfg.Sub("correlation")
	assert.Equal(t, 2*time.Minute, corr.Duration("group_ttl", time.Minute))
	assert.Equal(t, 3, corr.Int("threshold", 2))

	// Missing and non-map keys yield an empty section.
	assert.Equal(t, "d", cfg.Sub("missing").String("anything", "d"))
	assert.Equal(t, "d", cfg.Sub("scalar").String("anything", "d"))
}

func TestHasAndRaw(t *testing.T) {
	m := map[string]any{"key": "value"}
	cfg := config.New(m)

	assert.True(t, cfg.Has("key"))
	assert.False(t, cfg.Has("absent"))
	assert.Equal(t, m, cfg.Raw())
	assert.Equal(t, "value", cfg.Any("key", nil))
	assert.Equal(t, "fallback", cfg.Any("absent", "fallback"))
}

func TestFromYAML(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
handler_timeout: 5s
correlation:
  threshold: 2
  required_types:
    - build.started
    - build.finished
`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Duration("handler_timeout", 0))
	corr := cfg.Sub("correlation")
	assert.Equal(t, 2, corr.Int("threshold", 0))
	assert.Equal(t, []string{"build.started", "build.finished"}, corr.StringSlice("required_types", nil))

	_, err = config.FromYAML([]byte("{invalid: ["))
	assert.Error(t, err)
}

func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"durable": true, "store": {"path": "./events.db"}}`))
	require.NoError(t, err)

	assert.True(t, cfg.Bool("durable", false))
	assert.Equal(t, "./events.db", cfg.Sub("store").String("path", ""))

	_, err = config.FromJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("group_ttl: 1m"), 0o644))

	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Duration("group_ttl", 0))

	jsonPath := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"group_ttl": "1m"}`), 0o644))

	cfg, err = config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Duration("group_ttl", 0))

	_, err = config.FromFile(filepath.Join(dir, "cfg.toml"))
	assert.Error(t, err, "unsupported extension")

	_, err = config.FromFile(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err, "missing file")
}
