package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/blow-storage/internal/domain"
)

// phase tracks pass/fail for a check phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func newCheckCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the integrity of stored blows",
		Long: `Verify the integrity of stored blows

Checks that ids are unique, scores and weights are in range, derived
visibility matches the stored counters and flagged blows respect the
visibility floor. Exits non-zero when any phase fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			blows, err := ws.persister.LoadBlows(cmd.Context())
			if err != nil {
				return err
			}
			phases := checkBlows(blows)
			if !report(cmd.OutOrStdout(), phases, len(blows)) {
				return fmt.Errorf("integrity check failed")
			}
			return nil
		},
	}
}

// checkBlows runs every check phase over blows as stored on disk.
func checkBlows(blows []domain.Blow) []*phase {
	return []*phase{
		checkIdentity(blows),
		checkContent(blows),
		checkRanges(blows),
		checkVisibility(blows),
	}
}

func checkIdentity(blows []domain.Blow) *phase {
	p := &phase{name: "Identity (unique, non-zero ids)"}
	seen := make(map[uint64]bool, len(blows))
	for _, b := range blows {
		if b.ID == 0 {
			p.errorf("blow with zero id: %q", b.Description)
		}
		if seen[b.ID] {
			p.errorf("duplicate id %d", b.ID)
		}
		seen[b.ID] = true
	}
	return p
}

func checkContent(blows []domain.Blow) *phase {
	p := &phase{name: "Content (description, timestamp, tags)"}
	for _, b := range blows {
		if strings.TrimSpace(b.Description) == "" {
			p.errorf("blow %d: blank description", b.ID)
		}
		if b.Timestamp <= 0 {
			p.errorf("blow %d: missing timestamp", b.ID)
		}
		for _, t := range b.Tags {
			if strings.TrimSpace(t) == "" {
				p.errorf("blow %d: blank tag", b.ID)
			}
		}
	}
	return p
}

func checkRanges(blows []domain.Blow) *phase {
	p := &phase{name: "Ranges (trust and visibility 0-100)"}
	for _, b := range blows {
		if b.TrustScore != nil && *b.TrustScore > domain.MaxTrustScore {
			p.errorf("blow %d: trust score %d out of range", b.ID, *b.TrustScore)
		}
		if b.Visibility > domain.MaxTrustScore {
			p.errorf("blow %d: visibility %d out of range", b.ID, b.Visibility)
		}
	}
	return p
}

func checkVisibility(blows []domain.Blow) *phase {
	p := &phase{name: "Visibility (derived weight, flag floor)"}
	for _, b := range blows {
		if b.Flagged && b.Visibility > domain.FlaggedFloor {
			p.errorf("blow %d: flagged but visibility %d exceeds %d", b.ID, b.Visibility, domain.FlaggedFloor)
		}
		if b.VisibilityPinned {
			continue
		}
		if want := domain.ComputeVisibility(b.TrustScore, b.Upvotes, b.Downvotes, b.Flagged); b.Visibility != want {
			p.errorf("blow %d: visibility %d, derived %d", b.ID, b.Visibility, want)
		}
	}
	return p
}

// report prints a summary and returns true when every phase passed.
func report(w io.Writer, phases []*phase, records int) bool {
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}
	fmt.Fprintf(w, "\nRecords: %d\n", records)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}
	return allPassed
}
