package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/blow-storage/internal/domain"
	"github.com/couchcryptid/blow-storage/internal/service"
)

// seedEpoch fixes timestamps so seeded databases are reproducible.
var seedEpoch = time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)

var sampleReports = []string{
	"Officer at the Thika checkpoint demanded a bribe before letting our matatu pass",
	"The county hospital in Nakuru has had no doctor on night shift for three weeks",
	"Illegal dumping of medical waste near Kibera is contaminating the water supply",
	"School feeding funds in Machakos were misappropriated by the head teacher",
	"Road construction on the Eldoret highway stopped months ago and the contractor vanished",
	"Police harassment of hawkers in Kawangware every Friday evening",
	"Public funds for the Mombasa ferry maintenance are unaccounted for, taxpayer money wasted",
	"URGENT: collapsed building in Kisumu, people still trapped",
	"Ministry official asked for a kickback to approve our clinic permit",
	"nothing works here",
	"Students at the university were assaulted during a peaceful protest",
	"Toxic smoke from the factory near Nairobi river every morning, air quality is terrible",
}

type seedOptions struct {
	count     int
	seed      uint64
	threshold uint64
}

func newSeedCommand(root *rootOptions) *cobra.Command {
	opts := seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with reproducible sample blows",
		Long: `Fill the database with reproducible sample blows

Submits sample reports tagged by the keyword classifier, casts
pseudo-random votes, scores each blow with the rule judge and flags those
below the threshold, the same path the moderation pipeline takes. The
same --seed always produces the same records.`,
		Example: `  blowctl --db ./data seed --count 50`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			ids, err := seed(cmd.Context(), ws.svc, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d blows (ids %d-%d)\n", len(ids), ids[0], ids[len(ids)-1])
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.count, "count", "n", len(sampleReports), "number of blows to create")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "random seed for votes")
	cmd.Flags().Uint64Var(&opts.threshold, "flag-threshold", 20, "flag blows scoring below this trust score")
	return cmd
}

// seed submits opts.count sample blows and returns their ids.
func seed(ctx context.Context, svc *service.Service, opts seedOptions) ([]uint64, error) {
	if opts.count < 1 {
		return nil, fmt.Errorf("count must be at least 1, got %d", opts.count)
	}

	clock := clockwork.NewFakeClockAt(seedEpoch)
	domain.SetClock(clock)
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	ids := make([]uint64, 0, opts.count)

	for i := range opts.count {
		text := sampleReports[i%len(sampleReports)]
		id, err := svc.SubmitBlow(ctx, text, nil, domain.Classify(text))
		if err != nil {
			return ids, fmt.Errorf("submit sample %d: %w", i, err)
		}
		ids = append(ids, id)

		for range rng.IntN(12) {
			if _, err := svc.UpvoteBlow(ctx, id, ""); err != nil {
				return ids, err
			}
		}
		for range rng.IntN(5) {
			if _, err := svc.DownvoteBlow(ctx, id, ""); err != nil {
				return ids, err
			}
		}

		score, _, err := svc.EvaluateBlow(ctx, id)
		if err != nil {
			return ids, err
		}
		if score < opts.threshold {
			if _, err := svc.FlagBlow(ctx, id); err != nil {
				return ids, err
			}
		}

		clock.Advance(time.Duration(7+rng.IntN(50)) * time.Minute)
	}
	return ids, nil
}
