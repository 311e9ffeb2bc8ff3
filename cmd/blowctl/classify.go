package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/blow-storage/internal/domain"
)

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>...",
		Short: "Tag text with the keyword classifier",
		Long: `Tag text with the keyword classifier

Prints the tags the submission form would propose and the offline
trust score the rule judge assigns. Does not open the database.`,
		Example: `  blowctl classify "Clinic in Kibera has run out of medicine"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			tags := domain.Classify(text)
			score, err := domain.RuleJudge{}.ScoreTrust(context.Background(), text, tags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tags:  %s\n", strings.Join(tags, ", "))
			fmt.Fprintf(out, "trust: %d\n", score)
			return nil
		},
	}
}
