package internal

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const statsEvery = 2 * time.Second

// ConsoleObserver renders progress: a bar on a terminal, periodic stats log
// lines otherwise (pipes, log files, CI).
// The bar is sized lazily from the first snapshot, once enumeration is done.
type ConsoleObserver struct {
	out      *os.File
	tty      bool
	bar      *progressbar.ProgressBar
	snapshot func() Progress
	last     time.Time
}

func NewConsoleObserver(out *os.File, snapshot func() Progress) *ConsoleObserver {
	return &ConsoleObserver{
		out:      out,
		tty:      term.IsTerminal(int(out.Fd())),
		snapshot: snapshot,
	}
}

// Add is the ProgressFunc handed to the coordinator.
func (o *ConsoleObserver) Add(files int) {
	if o.tty {
		if o.bar == nil {
			o.bar = o.newBar(o.snapshot().Total)
		}
		_ = o.bar.Add(files)
		return
	}
	if time.Since(o.last) < statsEvery {
		return
	}
	o.last = time.Now()
	p := o.snapshot()
	logrus.Infof("Stats: processed=%d/%d infected=%d rate=%.1f/s eta=%s",
		p.Processed, p.Total, p.Infected, p.Rate(), p.ETA().Round(time.Second))
}

func (o *ConsoleObserver) newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(o.out),
		progressbar.OptionSetDescription("Scanning files"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (o *ConsoleObserver) Finish() {
	if o.bar != nil {
		_ = o.bar.Finish()
	}
}
