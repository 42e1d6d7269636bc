package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/runnerr0/tabtime/internal/dashboard"
)

// Execute implements the go-flags Commander interface for ClearCommand.
func (c *ClearCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("clear requires --all flag for safety")
	}

	// Confirmation prompt unless --force
	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete ALL tracked time.")
		fmt.Println("  - Today's and this week's totals")
		fmt.Println("  - All-time totals")
		fmt.Println()
		fmt.Println("This action cannot be undone.")
		fmt.Println()
		fmt.Print(`Type "CLEAR" to confirm: `)

		var in io.Reader = os.Stdin
		if c.in != nil {
			in = c.in
		}
		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		input := strings.TrimSpace(scanner.Text())
		if input != "CLEAR" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	s, err := openSession(c.globals, c.cfg, c.store)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := dashboard.NewKVReader(s.store).ClearAll(context.Background()); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]interface{}{
			"cleared": true,
			"message": "all data deleted",
		})
	}

	fmt.Println("Cleared all data. tabtime is empty.")
	return nil
}
