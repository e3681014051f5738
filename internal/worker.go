package internal

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"ClamBatch/internal/scanner"
)

// ClamAV exit statuses.
const (
	exitClean    = 0
	exitInfected = 1
)

const cleanMarker = "OK"

// Per-file messages that are not detections.
var notDetections = map[string]struct{}{
	cleanMarker:     {},
	"Empty file":    {},
	"Excluded":      {},
	"Symbolic link": {},
	"Removed.":      {},
}

// stderr lines the scanner emits for single unreadable files; not worth an error.
var benignStderr = []string{
	"Permission denied",
	"lstat() failed",
	"Can't access file",
	"No such file or directory",
}

// ClamWorker runs one clamscan/clamdscan process per batch.
type ClamWorker struct {
	Cmd            scanner.Command
	QuarantineDir  string
	DeleteInfected bool
	LoggingEnabled bool

	log logrus.FieldLogger
	run runFunc
}

func NewClamWorker(cmd scanner.Command, opts *ScanOptions, log logrus.FieldLogger) *ClamWorker {
	return &ClamWorker{
		Cmd:            cmd,
		QuarantineDir:  opts.quarantine(),
		DeleteInfected: opts.DeleteInfected,
		LoggingEnabled: opts.LoggingEnabled,
		log:            log,
		run:            runCommand,
	}
}

// Args builds the scanner argv (without the program) for a batch.
func (w *ClamWorker) Args(batch []string) []string {
	args := make([]string, 0, len(batch)+4)
	args = append(args, "--no-summary", "--stdout")
	if !w.LoggingEnabled {
		args = append(args, "--log="+os.DevNull)
	}
	switch {
	case w.DeleteInfected:
		args = append(args, "--remove")
	case w.QuarantineDir != "":
		args = append(args, "--move="+w.QuarantineDir)
	}
	return append(args, batch...)
}

// ScanBatch scans the whole batch with a single scanner process. It never
// fails the run: problems are reported through BatchResult.Err.
func (w *ClamWorker) ScanBatch(ctx context.Context, batch []string) scanner.BatchResult {
	res := scanner.BatchResult{Files: len(batch)}
	out := w.run(ctx, w.Cmd.Path, w.Args(batch)...)
	res.ExitCode = out.ExitCode

	// a scanner that exited on its own has already moved or removed files,
	// so only a process torn down by a signal counts as killed
	if out.ExitCode < 0 && ctx.Err() != nil {
		res.Killed = true
		res.Err = &BatchScanError{Files: len(batch), ExitCode: out.ExitCode, Err: ctx.Err()}
		return res
	}

	switch out.ExitCode {
	case exitClean:
		// fast path, nothing to parse
	case exitInfected:
		res.Infections = w.parse(out.Stdout)
	default:
		res.Infections = w.parse(out.Stdout)
		stderr := filterNoise(out.Stderr)
		switch {
		case out.ExitCode < 0:
			res.Err = &BatchScanError{Files: len(batch), ExitCode: out.ExitCode, Stderr: stderr, Err: out.Err}
			w.log.WithError(res.Err).Error("Exception while scanning batch")
		case stderr != "":
			res.Err = &BatchScanError{Files: len(batch), ExitCode: out.ExitCode, Stderr: stderr}
			w.log.WithError(res.Err).Error("Error while scanning batch")
		default:
			w.log.WithField("exit", out.ExitCode).Warn("Scanner exited with an error status, only per-file access errors were reported")
		}
	}
	return res
}

// parse reads "path: message" lines. Lines without the separator are skipped.
func (w *ClamWorker) parse(stdout string) []scanner.Infection {
	var infections []scanner.Infection
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimRight(line, "\r")
		path, msg, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		msg = strings.TrimSpace(msg)
		switch {
		case isNotDetection(msg):
			continue
		case strings.HasSuffix(msg, " ERROR"):
			w.log.WithField("file", path).Warn(strings.TrimSuffix(msg, " ERROR"))
			continue
		}
		inf := scanner.Infection{Path: path, Message: strings.TrimSuffix(msg, " FOUND")}
		w.log.WithFields(logrus.Fields{"file": inf.Path, "signature": inf.Message}).Info("Infected file")
		infections = append(infections, inf)
	}
	return infections
}

func isNotDetection(msg string) bool {
	if _, ok := notDetections[msg]; ok {
		return true
	}
	// quarantine action notes: "moved to '/q/x'", "copied to '/q/x'"
	return strings.HasPrefix(msg, "moved to ") || strings.HasPrefix(msg, "copied to ")
}

func filterNoise(stderr string) string {
	var kept []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isBenign(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "; ")
}

func isBenign(line string) bool {
	for _, s := range benignStderr {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}
