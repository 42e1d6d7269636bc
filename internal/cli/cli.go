package cli

import (
	"errors"
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Run    *RunCommand
	Status *StatusCommand
	Report *ReportCommand
	Prune  *PruneCommand
	Clear  *ClearCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "tabtime"
	parser.LongDescription = "Local time tracking per website, fed by a browser extension over native messaging."

	cmds := &commands{
		Run:    &RunCommand{globals: &globals, version: version},
		Status: &StatusCommand{globals: &globals, version: version},
		Report: &ReportCommand{globals: &globals, version: version},
		Prune:  &PruneCommand{globals: &globals, version: version},
		Clear:  &ClearCommand{globals: &globals, version: version},
	}

	parser.AddCommand("run", "Run the native messaging host", "Read tab events from the browser on stdin and track time until the browser disconnects.", cmds.Run)
	parser.AddCommand("status", "Show storage health and statistics", "Show database location, installation time, last flush, and retained periods.", cmds.Status)
	parser.AddCommand("report", "Show time spent per site", "Show time spent per site today, this week, or all time.", cmds.Report)
	parser.AddCommand("prune", "Apply retention pruning", "Drop daily and weekly entries outside the retention windows.", cmds.Prune)
	parser.AddCommand("clear", "Delete ALL tracked time", "Delete ALL tracked time. Destructive operation with safety prompt.", cmds.Clear)

	return parser, &globals, cmds
}

// Run is the main entry point for the tabtime CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("tabtime %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	var flagsErr *goflags.Error
	if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
		return nil
	}
	return err
}
