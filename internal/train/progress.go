package train

import (
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress observes a training run. It never influences results.
type Progress interface {
	Start(total int)
	Add(n int)
	Finish()
}

type nopProgress struct{}

func (nopProgress) Start(int) {}
func (nopProgress) Add(int)   {}
func (nopProgress) Finish()   {}

// NopProgress returns a Progress that ignores every call.
func NopProgress() Progress {
	return nopProgress{}
}

// barProgress renders a terminal progress bar.
type barProgress struct {
	w           io.Writer
	description string
	bar         *progressbar.ProgressBar
}

// NewBarProgress returns a Progress that draws a bar on w.
func NewBarProgress(w io.Writer, description string) Progress {
	return &barProgress{w: w, description: description}
}

func (p *barProgress) Start(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(p.description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("step"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(p.w, "\n") }),
	)
}

func (p *barProgress) Add(n int) {
	if p.bar != nil {
		_ = p.bar.Add(n)
	}
}

func (p *barProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// logProgress emits a log record every `every` steps.
type logProgress struct {
	logger *slog.Logger
	every  int
	total  int
	done   int
	start  time.Time
}

// NewLogProgress returns a Progress that logs every `every` steps.
func NewLogProgress(logger *slog.Logger, every int) Progress {
	if logger == nil {
		logger = slog.Default()
	}
	return &logProgress{logger: logger, every: max(every, 1)}
}

func (p *logProgress) Start(total int) {
	p.total, p.done, p.start = total, 0, time.Now()
}

func (p *logProgress) Add(n int) {
	p.done += n
	if p.done%p.every == 0 || p.done == p.total {
		p.logger.Info("training progress",
			"step", p.done,
			"total", p.total,
			"elapsed", time.Since(p.start).Round(time.Millisecond))
	}
}

func (p *logProgress) Finish() {}
