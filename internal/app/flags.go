package app

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/92Bilal26/ai-junior-bilal/internal/handlers"
	"github.com/92Bilal26/ai-junior-bilal/internal/paths"
)

// AddFlags registers the shared settings on fs and binds each to its viper
// key. Keys double as upper-case environment variables.
func AddFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.String("root", "", "project root (env AI_EMPLOYEE_ROOT; default: working directory)")
	fs.String("vault", "", "vault directory (default: <root>/vault)")
	fs.String("drop-folder", "", "drop folder watched for files (default: <vault>/Inbox/Drop)")
	fs.String("log-dir", "", "component log directory (default: <vault>/Logs)")
	fs.String("state-dir", "", "watcher and runner state directory (default: <root>/.state)")
	fs.String("apps-dir", "", "scaffolded apps directory (default: <vault>/../apps)")

	fs.String("claude-cli", "claude", "assistant command")
	fs.StringSlice("claude-args", nil, "extra assistant arguments")
	fs.Bool("claude-force-restart", true, "restart an assistant this process cannot write to")

	fs.Duration("executor-timeout", 10*time.Minute, "how long a task may execute without output")
	fs.Duration("dispatch-retry-base", 30*time.Second, "base delay of the quadratic dispatch backoff")
	fs.Int("dispatch-max-attempts", 5, "failed dispatches before a task is rejected (0 = unlimited)")

	fs.String("ess-attendance-url", "", "attendance bridge URL (POST JSON)")
	fs.String("ess-attendance-command", "", "attendance bridge command (JSON line on stdin)")
	fs.Duration("ess-attendance-timeout", 2*time.Minute, "attendance call timeout")

	fs.String("smtp-host", "", "SMTP host; empty only logs emails")
	fs.Int("smtp-port", 587, "SMTP port")
	fs.String("smtp-from", "", "SMTP sender address")
	fs.String("smtp-username", "", "SMTP auth username")
	fs.String("smtp-password", "", "SMTP auth password")
	fs.Int("email-rate-limit", 20, "emails allowed per window (needs Redis)")
	fs.Duration("email-rate-window", time.Hour, "email rate limit window")

	fs.String("kafka-brokers", "", "comma-separated Kafka brokers for transition events; empty disables")
	fs.String("kafka-topic", "ai-employee.transitions", "transition events topic")
	fs.String("redis-addr", "", "Redis address for leases and rate limits; empty disables")
	fs.String("postgres-dsn", "", "PostgreSQL DSN for the transition history; empty disables")

	for _, name := range []string{
		"root", "vault", "drop-folder", "log-dir", "state-dir", "apps-dir",
		"claude-cli", "claude-args", "claude-force-restart",
		"executor-timeout", "dispatch-retry-base", "dispatch-max-attempts",
		"ess-attendance-url", "ess-attendance-command", "ess-attendance-timeout",
		"smtp-host", "smtp-port", "smtp-from", "smtp-username", "smtp-password",
		"email-rate-limit", "email-rate-window",
		"kafka-brokers", "kafka-topic", "redis-addr", "postgres-dsn",
	} {
		bind(v, fs, name)
	}
	_ = v.BindEnv("root", "AI_EMPLOYEE_ROOT")
	_ = v.BindEnv("vault", "VAULT_PATH")
}

func bind(v *viper.Viper, fs *pflag.FlagSet, flagName string) {
	key := Key(flagName)
	if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("bindFlag %q → %q: %v", flagName, key, err))
	}
}

// Key maps a flag name to its viper key.
func Key(flagName string) string {
	out := []byte(flagName)
	for i, c := range out {
		if c == '-' {
			out[i] = '_'
		}
	}
	return string(out)
}

// LoadSettings reads the shared settings from v.
func LoadSettings(v *viper.Viper) Settings {
	return Settings{
		Paths: paths.Overrides{
			Root:  v.GetString("root"),
			Vault: v.GetString("vault"),
			Drop:  v.GetString("drop_folder"),
			Logs:  v.GetString("log_dir"),
			State: v.GetString("state_dir"),
			Apps:  v.GetString("apps_dir"),
		},
		ClaudeCommand:       v.GetString("claude_cli"),
		ClaudeArgs:          v.GetStringSlice("claude_args"),
		ClaudeForceRestart:  v.GetBool("claude_force_restart"),
		ExecutorTimeout:     v.GetDuration("executor_timeout"),
		DispatchRetryBase:   v.GetDuration("dispatch_retry_base"),
		DispatchMaxAttempts: v.GetInt("dispatch_max_attempts"),
		AttendanceURL:       v.GetString("ess_attendance_url"),
		AttendanceCommand:   v.GetString("ess_attendance_command"),
		AttendanceTimeout:   v.GetDuration("ess_attendance_timeout"),
		SMTP: handlers.EmailConfig{
			Host:     v.GetString("smtp_host"),
			Port:     v.GetInt("smtp_port"),
			From:     v.GetString("smtp_from"),
			Username: v.GetString("smtp_username"),
			Password: v.GetString("smtp_password"),
		},
		EmailRateLimit:  v.GetInt("email_rate_limit"),
		EmailRateWindow: v.GetDuration("email_rate_window"),
		KafkaBrokers:    v.GetString("kafka_brokers"),
		KafkaTopic:      v.GetString("kafka_topic"),
		RedisAddr:       v.GetString("redis_addr"),
		PostgresDSN:     v.GetString("postgres_dsn"),
	}
}
