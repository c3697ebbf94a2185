package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/kafka"
	"github.com/92Bilal26/ai-junior-bilal/services/orchestrator/config"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow task transition events",
}

var (
	tailGroup     string
	tailFromStart bool
	tailEvents    []string
)

func init() {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print transition events from Kafka as they arrive",
		RunE:  runTail,
	}
	tailCmd.Flags().StringVar(&tailGroup, "group", "", "consumer group (default: a fresh group per run)")
	tailCmd.Flags().BoolVar(&tailFromStart, "from-start", false, "read the topic from the first retained event")
	tailCmd.Flags().StringSliceVar(&tailEvents, "event", nil, "only print these events (plan, approve, complete, ...)")
	eventsCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	brokers := strings.Split(cfg.App.KafkaBrokers, ",")
	if strings.TrimSpace(cfg.App.KafkaBrokers) == "" {
		return errors.New("events tail needs --kafka-brokers or KAFKA_BROKERS")
	}
	logger := buildLogger(cfg.LogLevel, "orchestrator")

	group := tailGroup
	if group == "" {
		group = fmt.Sprintf("events-tail-%d", time.Now().UnixNano())
	}
	consumer := kafka.NewConsumer(brokers, topicOrDefault(cfg.App.KafkaTopic), group, logger, kafka.FromStart(tailFromStart))
	defer func() { _ = consumer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	wanted := eventFilter(tailEvents)
	return consumer.Subscribe(ctx, func(_ context.Context, msg kafka.Message) error {
		if !wanted(msg.Header(kafka.HeaderEvent)) {
			return nil
		}
		rec, err := kafka.DecodeRecord(msg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return nil
		}
		printRecord(out, rec)
		return nil
	})
}

func printRecord(w io.Writer, rec domain.TransitionRecord) {
	line := fmt.Sprintf("%s %-16s %s: %s -> %s [%s]",
		rec.At.UTC().Format(time.RFC3339), rec.Event, rec.Task, rec.From, rec.To, rec.Folder)
	if rec.Detail != "" {
		line += " " + rec.Detail
	}
	fmt.Fprintln(w, line)
}

// eventFilter matches every event when names is empty.
func eventFilter(names []string) func(string) bool {
	if len(names) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.TrimSpace(n)] = true
	}
	return func(event string) bool { return set[event] }
}

func topicOrDefault(topic string) string {
	if topic == "" {
		return kafka.DefaultTopic
	}
	return topic
}
