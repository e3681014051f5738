package internal

import (
	"path/filepath"
	"runtime"

	"github.com/hashicorp/go-multierror"
)

const (
	DefaultBatchSize = 100
	DefaultFreshclam = "freshclam"

	// DefaultReserveCPUs is how many CPUs the CLI leaves free when --jobs
	// is not given.
	DefaultReserveCPUs = 1
)

// DefaultExcludes are pseudo and volatile filesystems nobody wants scanned.
var DefaultExcludes = []string{"/proc", "/sys", "/dev", "/run", "/tmp", "/var/lib", "/var/run"}

// ScanOptions - public options from CLI and config file.
type ScanOptions struct {
	Roots          []string
	Exclude        []string
	QuarantineDir  string
	DeleteInfected bool
	BatchSize      int
	Jobs           int
	ReserveCPUs    int // CPUs left free when Jobs is unset
	Depth          int
	LoggingEnabled bool
	ScannerPath    string
	UpdateDB       bool
	FreshclamPath  string
	HistoryDB      string
	ReportXLSX     string

	excludeSet map[string]struct{}
}

// Validate checks invariants. All violations are reported together.
func (o *ScanOptions) Validate() error {
	var result *multierror.Error
	if o.BatchSize <= 0 {
		result = multierror.Append(result, configErr("batch size must be positive, got %d", o.BatchSize))
	}
	if o.Jobs < 0 {
		result = multierror.Append(result, configErr("jobs must not be negative, got %d", o.Jobs))
	}
	if o.ReserveCPUs < 0 {
		result = multierror.Append(result, configErr("reserved CPUs must not be negative, got %d", o.ReserveCPUs))
	}
	if o.Depth < 0 {
		result = multierror.Append(result, configErr("depth must not be negative, got %d", o.Depth))
	}
	return result.ErrorOrNil()
}

// Prepare normalizes paths and fills defaults.
func (o *ScanOptions) Prepare() {
	o.excludeSet = make(map[string]struct{}, len(o.Exclude))
	for _, d := range o.Exclude {
		abs, err := filepath.Abs(d)
		if err != nil {
			continue
		}
		o.excludeSet[abs] = struct{}{}
		// walked paths are symlink-free, match them in that form too
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			o.excludeSet[real] = struct{}{}
		}
	}
	if o.Jobs <= 0 {
		o.Jobs = DefaultJobs(o.ReserveCPUs)
	}
	if o.QuarantineDir != "" {
		if abs, err := filepath.Abs(o.QuarantineDir); err == nil {
			o.QuarantineDir = abs
		}
	}
	if o.FreshclamPath == "" {
		o.FreshclamPath = DefaultFreshclam
	}
}

// DefaultJobs leaves reserved CPUs for the rest of the system, keeping at
// least one job.
func DefaultJobs(reserved int) int {
	return max(1, runtime.GOMAXPROCS(0)-reserved)
}

// quarantine returns the move target, empty when infected files are deleted.
func (o *ScanOptions) quarantine() string {
	if o.DeleteInfected {
		return ""
	}
	return o.QuarantineDir
}

func (o *ScanOptions) excluded(absDir string) bool {
	_, ok := o.excludeSet[absDir]
	return ok
}
