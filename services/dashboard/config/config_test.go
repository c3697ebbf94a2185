package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/92Bilal26/ai-junior-bilal/services/dashboard/config"
)

func TestInterval(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"10", 10 * time.Second},
		{" 60 ", time.Minute},
		{"1m30s", 90 * time.Second},
		{"", 0},
		{"soon", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, config.Interval(tt.in), tt.in)
	}
}

func TestLoad_ReadsDashboardEnvironmentNames(t *testing.T) {
	t.Setenv("DASHBOARD_PORT", "9999")
	t.Setenv("DASHBOARD_EXECUTOR_AUTORUN", "true")
	t.Setenv("DASHBOARD_EXECUTOR_INTERVAL", "45")
	t.Setenv("CLAUDE_AUTOLOAD", "1")
	v := viper.New()
	v.AutomaticEnv()

	cfg := config.Load(v)

	assert.Equal(t, 9999, cfg.Port)
	assert.True(t, cfg.ClaudeAutoload)
	assert.True(t, cfg.Autorun.Executor)
	assert.Equal(t, 45*time.Second, cfg.Autorun.ExecutorInterval)
	assert.False(t, cfg.Autorun.Watchdog)
}
