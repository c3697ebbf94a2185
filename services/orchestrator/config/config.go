package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/92Bilal26/ai-junior-bilal/internal/app"
)

// Config holds typed configuration for the orchestrator service.
type Config struct {
	LogLevel        string
	MetricsAddr     string
	OTelEndpoint    string
	OTelSampleRatio float64

	Components []string

	PlannerInterval   time.Duration
	ApprovalsInterval time.Duration
	ExecutorInterval  time.Duration
	FileDropInterval  time.Duration
	WatchdogInterval  time.Duration

	App app.Settings
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:          v.GetString("log_level"),
		MetricsAddr:       v.GetString("metrics_addr"),
		OTelEndpoint:      v.GetString("otel_endpoint"),
		OTelSampleRatio:   v.GetFloat64("otel_sample_ratio"),
		Components:        v.GetStringSlice("components"),
		PlannerInterval:   v.GetDuration("planner_interval"),
		ApprovalsInterval: v.GetDuration("approvals_interval"),
		ExecutorInterval:  v.GetDuration("executor_interval"),
		FileDropInterval:  v.GetDuration("filedrop_interval"),
		WatchdogInterval:  v.GetDuration("watchdog_interval"),
		App:               app.LoadSettings(v),
	}
}
