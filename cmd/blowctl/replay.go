package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	kafkaadapter "github.com/couchcryptid/blow-storage/internal/adapter/kafka"
	"github.com/couchcryptid/blow-storage/internal/config"
	"github.com/couchcryptid/blow-storage/internal/domain"
)

func newReplayCommand(root *rootOptions) *cobra.Command {
	var (
		brokers, topic string
		unscoredOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Publish blow.submitted events for stored blows",
		Long: `Publish blow.submitted events for stored blows

Re-emits submission events to the lifecycle topic so the moderation
pipeline scores blows again, for example after a judge outage. Broker and
topic default to the service's KAFKA_* environment.`,
		Example: `  blowctl --db ./data replay --unscored-only`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if brokers != "" {
				cfg.KafkaBrokers = strings.Split(brokers, ",")
			}
			if topic != "" {
				cfg.KafkaEventsTopic = topic
			}

			ws, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			events := replayEvents(ws.svc.GetBlows(), unscoredOnly)
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to replay")
				return nil
			}

			pub := kafkaadapter.NewPublisher(cfg, root.logger())
			defer pub.Close()

			for start := 0; start < len(events); start += cfg.BatchSize {
				end := min(start+cfg.BatchSize, len(events))
				if err := pub.PublishBatch(cmd.Context(), events[start:end]); err != nil {
					return fmt.Errorf("replay after %d events: %w", start, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d events to %s\n", len(events), cfg.KafkaEventsTopic)
			return nil
		},
	}

	cmd.Flags().StringVar(&brokers, "brokers", "", "comma-separated Kafka brokers (default $KAFKA_BROKERS)")
	cmd.Flags().StringVar(&topic, "topic", "", "events topic (default $KAFKA_EVENTS_TOPIC)")
	cmd.Flags().BoolVar(&unscoredOnly, "unscored-only", false, "skip blows that already have a trust score")
	return cmd
}

func replayEvents(blows []domain.Blow, unscoredOnly bool) []domain.BlowEvent {
	events := make([]domain.BlowEvent, 0, len(blows))
	for _, b := range blows {
		if unscoredOnly && b.TrustScore != nil {
			continue
		}
		events = append(events, domain.NewBlowEvent(domain.EventSubmitted, b))
	}
	return events
}
