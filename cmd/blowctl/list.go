package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/blow-storage/internal/domain"
	"github.com/couchcryptid/blow-storage/internal/store"
)

func newListCommand(root *rootOptions) *cobra.Command {
	var (
		query, tag, sort string
		excludeFlagged   bool
		asJSON           bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored blows",
		Example: `  blowctl list --sort trust
  blowctl list --tag corruption --exclude-flagged --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			order, err := store.ParseSortOrder(sort)
			if err != nil {
				return err
			}
			ws, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			blows := ws.svc.ListBlows(store.ListOptions{
				Query:          query,
				Tag:            tag,
				Sort:           order,
				ExcludeFlagged: excludeFlagged,
			})
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), blows)
			}
			return writeTable(cmd.OutOrStdout(), blows)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive text search over description and tags")
	cmd.Flags().StringVar(&tag, "tag", "", "only blows carrying this tag")
	cmd.Flags().StringVar(&sort, "sort", "", "newest, trust, votes or visibility (default creation order)")
	cmd.Flags().BoolVar(&excludeFlagged, "exclude-flagged", false, "hide flagged blows")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newShowCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one blow as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid blow id %q", args[0])
			}
			ws, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			b, ok := ws.svc.GetBlow(id)
			if !ok {
				return fmt.Errorf("blow %d not found", id)
			}
			return writeJSON(cmd.OutOrStdout(), b)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, blows []domain.Blow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTRUST\tVOTES\tVIS\tFLAG\tTAGS\tDESCRIPTION")
	for _, b := range blows {
		trust := "-"
		if b.TrustScore != nil {
			trust = strconv.FormatUint(*b.TrustScore, 10)
		}
		flag := ""
		if b.Flagged {
			flag = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t+%d/-%d\t%d\t%s\t%s\t%s\n",
			b.ID,
			time.Unix(0, b.Timestamp).UTC().Format(time.DateTime),
			trust,
			b.Upvotes, b.Downvotes,
			b.Visibility,
			flag,
			strings.Join(b.Tags, ","),
			summarize(b.Description, 60),
		)
	}
	return tw.Flush()
}

func summarize(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
