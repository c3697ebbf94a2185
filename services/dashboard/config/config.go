package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/92Bilal26/ai-junior-bilal/internal/app"
	"github.com/92Bilal26/ai-junior-bilal/services/dashboard"
)

// Config holds typed configuration for the dashboard service.
type Config struct {
	LogLevel        string
	Host            string
	Port            int
	OTelEndpoint    string
	OTelSampleRatio float64

	ClaudeAutoload  bool
	ClaudeAutostart bool
	Autorun         dashboard.Autorun

	App app.Settings
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:        v.GetString("log_level"),
		Host:            v.GetString("dashboard_host"),
		Port:            v.GetInt("dashboard_port"),
		OTelEndpoint:    v.GetString("otel_endpoint"),
		OTelSampleRatio: v.GetFloat64("otel_sample_ratio"),
		ClaudeAutoload:  v.GetBool("claude_autoload"),
		ClaudeAutostart: v.GetBool("dashboard_claude_autostart"),
		Autorun: dashboard.Autorun{
			Watchdog:             v.GetBool("dashboard_claude_watchdog"),
			WatchdogInterval:     Interval(v.GetString("dashboard_claude_watchdog_interval")),
			Orchestrator:         v.GetBool("dashboard_orchestrator_autorun"),
			OrchestratorInterval: Interval(v.GetString("dashboard_orchestrator_interval")),
			Executor:             v.GetBool("dashboard_executor_autorun"),
			ExecutorInterval:     Interval(v.GetString("dashboard_executor_interval")),
		},
		App: app.LoadSettings(v),
	}
}

// Interval parses a Go duration or a bare number of seconds. Anything else
// is zero, which the loops replace with their minimum.
func Interval(s string) time.Duration {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
