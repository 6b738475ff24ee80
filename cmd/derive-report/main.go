// Command derive-report runs one full derivation pass over the configured
// store and prints the refreshed derived-value collection as JSON. Storage and
// archive backends are selected through CLIENTPULSE_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"clientpulse/internal/blob"
	"clientpulse/internal/core"
)

var exitFunc = os.Exit

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "derive-report: %v\n", err)
		exitFunc(1)
	}
}

func run(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("derive-report", flag.ContinueOnError)
	pretty := fs.Bool("pretty", true, "indent the JSON output")
	archive := fs.Bool("archive", false, "also write the report to the configured blob archive")
	timeout := fs.Duration("timeout", 30*time.Second, "overall run timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	opts := []core.Option{}
	if *archive {
		archiveStore, err := blob.Open(ctx)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		opts = append(opts, core.WithReportArchive(archiveStore, "reports/"))
	}

	svc := core.NewService(store, opts...)
	if _, err := svc.Recompute(ctx); err != nil {
		return fmt.Errorf("recompute: %w", err)
	}

	records := svc.DerivedRecords()
	enc := json.NewEncoder(w)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if *archive {
		key, err := svc.ArchiveReport(ctx)
		if err != nil {
			return fmt.Errorf("archive report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "report archived as %s\n", key)
	}
	return nil
}
