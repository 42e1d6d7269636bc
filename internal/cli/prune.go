package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/tabtime/internal/aggregate"
	"github.com/runnerr0/tabtime/internal/dashboard"
)

type pruneJSON struct {
	DryRun bool     `json:"dry_run"`
	Days   []string `json:"days"`
	Weeks  []string `json:"weeks"`
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	s, err := openSession(c.globals, c.cfg, c.store)
	if err != nil {
		return err
	}
	defer s.Close()

	cal, err := calendarFor(s.cfg)
	if err != nil {
		return err
	}
	ret := retentionFor(s.cfg)
	now := nowOr(c.now)
	ctx := context.Background()

	snap, err := dashboard.NewKVReader(s.store).Snapshot(ctx)
	if err != nil {
		return err
	}

	days, weeks := aggregate.PruneExpired(snap, cal, ret, now)

	if !c.DryRun && len(days)+len(weeks) > 0 {
		store := aggregate.NewStore(s.store, cal, ret)
		if err := store.Persist(ctx, snap, now); err != nil {
			return fmt.Errorf("prune failed: %w", err)
		}
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(pruneJSON{
			DryRun: c.DryRun,
			Days:   nonNil(days),
			Weeks:  nonNil(weeks),
		})
	}

	switch {
	case len(days)+len(weeks) == 0:
		fmt.Println("No entries to prune.")
	case c.DryRun:
		fmt.Printf("[DRY RUN] Would prune %d daily and %d weekly entries (retention %d/%d days).\n",
			len(days), len(weeks), ret.DailyDays, ret.WeeklyDays)
	default:
		fmt.Printf("Pruned %d daily and %d weekly entries (retention %d/%d days).\n",
			len(days), len(weeks), ret.DailyDays, ret.WeeklyDays)
	}
	if c.globals != nil && c.globals.Verbose {
		for _, d := range days {
			fmt.Printf("  day  %s\n", d)
		}
		for _, w := range weeks {
			fmt.Printf("  week %s\n", w)
		}
	}
	return nil
}

func nonNil(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}
