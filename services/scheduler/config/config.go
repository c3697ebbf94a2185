package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/92Bilal26/ai-junior-bilal/internal/app"
)

// Config holds typed configuration for the scheduler service.
type Config struct {
	LogLevel        string
	JobsFile        string
	CheckInterval   time.Duration
	LeaderTTL       time.Duration
	MetricsAddr     string
	OTelEndpoint    string
	OTelSampleRatio float64

	App app.Settings
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:        v.GetString("log_level"),
		JobsFile:        v.GetString("jobs_file"),
		CheckInterval:   v.GetDuration("check_interval"),
		LeaderTTL:       v.GetDuration("leader_ttl"),
		MetricsAddr:     v.GetString("metrics_addr"),
		OTelEndpoint:    v.GetString("otel_endpoint"),
		OTelSampleRatio: v.GetFloat64("otel_sample_ratio"),
		App:             app.LoadSettings(v),
	}
}
