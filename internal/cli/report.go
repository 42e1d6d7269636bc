package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/tabtime/internal/dashboard"
)

// Execute implements the go-flags Commander interface for ReportCommand.
func (c *ReportCommand) Execute(args []string) error {
	period, err := dashboard.ParsePeriod(c.Period)
	if err != nil {
		return err
	}
	if c.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	s, err := openSession(c.globals, c.cfg, c.store)
	if err != nil {
		return err
	}
	defer s.Close()

	cal, err := calendarFor(s.cfg)
	if err != nil {
		return err
	}

	summary, err := dashboard.Load(context.Background(), dashboard.NewKVReader(s.store), cal, period, c.Date, nowOr(c.now), c.Limit)
	if err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(summary)
	}
	fmt.Println(dashboard.Render(summary))
	return nil
}
