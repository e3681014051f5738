package main

import (
	"ClamBatch/internal"
	"ClamBatch/internal/history"
	"ClamBatch/internal/quarantine"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	// container CPU quota drives the default job count
	_, _ = maxprocs.Set()

	app := &cli.App{
		Name:      "ClamBatch",
		Usage:     "Scan directories with ClamAV using parallel batches",
		ArgsUsage: "<dir> [dir...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "INI file with [scan] and [report] sections; flags override it",
			},
			&cli.StringSliceFlag{
				Name:  "exclude-dirs",
				Usage: "Directories never descended into (absolute or relative to cwd)",
				Value: cli.NewStringSlice(internal.DefaultExcludes...),
			},
			&cli.StringFlag{
				Name:  "quarantine-dir",
				Usage: "Move infected files into this directory",
			},
			&cli.BoolFlag{
				Name:  "delete-infected",
				Usage: "Remove infected files from disk (wins over --quarantine-dir)",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Files per scanner invocation",
				Value: internal.DefaultBatchSize,
			},
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "Parallel scanner processes (default CPUs - reserve-cpus)",
			},
			&cli.IntFlag{
				Name:  "reserve-cpus",
				Usage: "CPUs left free when --jobs is not set",
				Value: internal.DefaultReserveCPUs,
			},
			&cli.IntFlag{
				Name:  "depth",
				Usage: "Max directory depth (0 - unlimited)",
			},
			&cli.StringFlag{
				Name:  "scanner",
				Usage: "Scanner binary to use instead of probing clamdscan/clamscan",
			},
			&cli.BoolFlag{
				Name:  "update-db",
				Usage: "Run freshclam before scanning",
			},
			&cli.StringFlag{
				Name:  "freshclam",
				Usage: "freshclam binary",
				Value: internal.DefaultFreshclam,
			},
			&cli.BoolFlag{
				Name:  "no-log",
				Usage: "Disable logging, including the scanner's own log",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Append logs to this file instead of stderr",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "history-db",
				Usage: "Record the run in this SQLite database",
			},
			&cli.StringFlag{
				Name:  "report-xlsx",
				Usage: "Write the infection report to this .xlsx file",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Stop dispatching new batches after this long (e.g. 30m)",
			},
		},
		Before: func(c *cli.Context) error {
			internal.InitLogger(c.String("log-file"), c.String("log-level"))
			return nil
		},
		Action: scanAction,
		Commands: []*cli.Command{
			updateDBCommand(),
			quarantineCommand(),
			historyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func scanAction(c *cli.Context) error {
	opts := internal.ScanOptions{
		Exclude:        internal.DefaultExcludes,
		BatchSize:      internal.DefaultBatchSize,
		ReserveCPUs:    internal.DefaultReserveCPUs,
		LoggingEnabled: true,
		FreshclamPath:  internal.DefaultFreshclam,
	}
	if path := c.String("config"); path != "" {
		if err := internal.LoadConfig(path, &opts); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	applyFlags(c, &opts)
	if c.Args().Len() > 0 {
		opts.Roots = c.Args().Slice()
	}
	if len(opts.Roots) == 0 {
		return cli.Exit("No directories to scan", 1)
	}
	if !opts.LoggingEnabled {
		logrus.SetOutput(io.Discard)
	}

	coord, err := internal.NewCoordinator(opts)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	logrus.Info("ClamBatch started")

	// ctx with timeout; first signal cancels softly, second kills scanners
	base := context.Background()
	var cancel context.CancelFunc
	if t := c.Duration("timeout"); t > 0 {
		base, cancel = context.WithTimeout(base, t)
	} else {
		base, cancel = context.WithCancel(base)
	}
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logrus.Warn("Scan interrupted by user, waiting for running batches (repeat to stop now)")
			cancel()
		case <-done:
			return
		}
		select {
		case <-sigCh:
			logrus.Warn("Stopping scanner processes")
			coord.Stop()
		case <-done:
		}
	}()

	observer := internal.NewConsoleObserver(os.Stderr, coord.Snapshot)
	res, err := coord.Scan(base, observer.Add)
	observer.Finish()
	if err != nil {
		logrus.WithError(err).Error("Scan failed")
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	if res.Total == 0 && !res.Cancelled {
		fmt.Println("No files found to scan.")
		return nil
	}

	internal.WriteSummary(os.Stdout, res)
	writeReports(c.Context, coord.Options(), res)

	if res.Cancelled || res.Stopped {
		return cli.Exit("Scan interrupted", 1)
	}
	return nil
}

func applyFlags(c *cli.Context, opts *internal.ScanOptions) {
	if c.IsSet("exclude-dirs") {
		opts.Exclude = c.StringSlice("exclude-dirs")
	}
	if c.IsSet("quarantine-dir") {
		opts.QuarantineDir = c.String("quarantine-dir")
	}
	if c.IsSet("delete-infected") {
		opts.DeleteInfected = c.Bool("delete-infected")
	}
	if c.IsSet("batch-size") {
		opts.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("jobs") {
		opts.Jobs = c.Int("jobs")
	}
	if c.IsSet("reserve-cpus") {
		opts.ReserveCPUs = c.Int("reserve-cpus")
	}
	if c.IsSet("depth") {
		opts.Depth = c.Int("depth")
	}
	if c.IsSet("scanner") {
		opts.ScannerPath = c.String("scanner")
	}
	if c.IsSet("update-db") {
		opts.UpdateDB = c.Bool("update-db")
	}
	if c.IsSet("freshclam") {
		opts.FreshclamPath = c.String("freshclam")
	}
	if c.IsSet("no-log") {
		opts.LoggingEnabled = !c.Bool("no-log")
	}
	if c.IsSet("history-db") {
		opts.HistoryDB = c.String("history-db")
	}
	if c.IsSet("report-xlsx") {
		opts.ReportXLSX = c.String("report-xlsx")
	}
}

func writeReports(ctx context.Context, opts internal.ScanOptions, res internal.Result) {
	if opts.HistoryDB != "" {
		if err := internal.RecordHistory(ctx, opts.HistoryDB, res); err != nil {
			logrus.WithError(err).WithField("db", opts.HistoryDB).Error("Failed to record scan history")
		}
	}
	if opts.ReportXLSX != "" {
		if err := internal.WriteXLSX(opts.ReportXLSX, res); err != nil {
			logrus.WithError(err).WithField("file", opts.ReportXLSX).Error("Failed to write report")
		} else {
			logrus.Infof("Report written to %s", opts.ReportXLSX)
		}
	}
}

func updateDBCommand() *cli.Command {
	return &cli.Command{
		Name:  "update-db",
		Usage: "Update the ClamAV signature database with freshclam",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "freshclam", Value: internal.DefaultFreshclam},
		},
		Action: func(c *cli.Context) error {
			if err := internal.UpdateDatabase(c.Context, c.String("freshclam"), logrus.StandardLogger()); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

func quarantineCommand() *cli.Command {
	dirFlag := &cli.StringFlag{Name: "dir", Usage: "Quarantine directory", Required: true}
	return &cli.Command{
		Name:  "quarantine",
		Usage: "Inspect and manage quarantined files",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List quarantined files",
				Flags: []cli.Flag{dirFlag},
				Action: func(c *cli.Context) error {
					ents, err := quarantine.List(c.String("dir"))
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					for _, e := range ents {
						fmt.Printf("%s\t%d\t%s\n", e.Name, e.Size, e.ModTime.Format(time.RFC3339))
					}
					return nil
				},
			},
			{
				Name:      "restore",
				Usage:     "Move a quarantined file back out",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					dirFlag,
					&cli.StringFlag{Name: "to", Usage: "Destination directory (default: home)"},
					&cli.BoolFlag{Name: "overwrite", Usage: "Replace an existing file at the destination"},
				},
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return cli.Exit("restore needs exactly one file name", 1)
					}
					to := c.String("to")
					if to == "" {
						home, err := os.UserHomeDir()
						if err != nil {
							return cli.Exit(err.Error(), 1)
						}
						to = home
					}
					dst, err := quarantine.Restore(c.String("dir"), c.Args().First(), to, c.Bool("overwrite"))
					if err != nil {
						if errors.Is(err, quarantine.ErrExists) {
							return cli.Exit(err.Error()+" (use --overwrite)", 1)
						}
						return cli.Exit(err.Error(), 1)
					}
					logrus.Infof("Restored %s", dst)
					return nil
				},
			},
			{
				Name:  "export",
				Usage: "Pack the quarantine into a .tar.gz",
				Flags: []cli.Flag{
					dirFlag,
					&cli.StringFlag{Name: "out", Usage: "Output archive", Value: "quarantine.tar.gz"},
				},
				Action: func(c *cli.Context) error {
					n, err := quarantine.Export(c.Context, c.String("dir"), c.String("out"))
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					logrus.Infof("Exported %d files to %s", n, c.String("out"))
					return nil
				},
			},
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded scan runs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "History database", Required: true},
			&cli.IntFlag{Name: "limit", Value: 10},
		},
		Action: func(c *cli.Context) error {
			store, err := history.Open(c.Context, c.String("db"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer store.Close()
			runs, err := store.Recent(c.Context, c.Int("limit"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			for _, r := range runs {
				status := "complete"
				if r.Cancelled {
					status = "partial"
				}
				fmt.Printf("%s  %s  %s  scanned=%d/%d infected=%d errors=%d %s\n",
					r.StartedAt.Local().Format(time.DateTime), r.ID, r.Scanner,
					r.Processed, r.Total, r.Infected, r.Errors, status)
				for _, inf := range r.Infections {
					fmt.Printf("    - %s: %s\n", inf.Path, inf.Message)
				}
			}
			return nil
		},
	}
}
