package internal

import (
	"fmt"

	"github.com/go-ini/ini"
)

// LoadConfig applies an INI file on top of opts. Keys missing from the file
// leave the current value alone.
//
//	[scan]
//	directories    = /home,/srv
//	exclude_dirs   = /proc,/sys
//	batch_size     = 100
//	jobs           = 4
//	reserve_cpus   = 1
//	quarantine_dir = /var/quarantine
//
//	[report]
//	history_db = /var/lib/clambatch/history.db
func LoadConfig(path string, opts *ScanOptions) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	scan := cfg.Section("scan")
	if scan.HasKey("directories") {
		opts.Roots = scan.Key("directories").Strings(",")
	}
	if scan.HasKey("exclude_dirs") {
		opts.Exclude = scan.Key("exclude_dirs").Strings(",")
	}
	opts.BatchSize = scan.Key("batch_size").MustInt(opts.BatchSize)
	opts.Jobs = scan.Key("jobs").MustInt(opts.Jobs)
	opts.ReserveCPUs = scan.Key("reserve_cpus").MustInt(opts.ReserveCPUs)
	opts.Depth = scan.Key("depth").MustInt(opts.Depth)
	opts.QuarantineDir = scan.Key("quarantine_dir").MustString(opts.QuarantineDir)
	opts.DeleteInfected = scan.Key("delete_infected").MustBool(opts.DeleteInfected)
	opts.LoggingEnabled = scan.Key("logging").MustBool(opts.LoggingEnabled)
	opts.ScannerPath = scan.Key("scanner").MustString(opts.ScannerPath)
	opts.UpdateDB = scan.Key("update_db").MustBool(opts.UpdateDB)
	opts.FreshclamPath = scan.Key("freshclam").MustString(opts.FreshclamPath)

	report := cfg.Section("report")
	opts.HistoryDB = report.Key("history_db").MustString(opts.HistoryDB)
	opts.ReportXLSX = report.Key("xlsx").MustString(opts.ReportXLSX)
	return nil
}
