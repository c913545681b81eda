package ingest

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

type ProgressReporter interface {
	Start(total int)
	Increment()
	Finish()
}

type itemProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewProgress returns a reporter for mode "auto", "always" or "never".
// Auto draws a bar only when stderr is a terminal. Disabled modes return nil.
func NewProgress(mode string) ProgressReporter {
	switch mode {
	case "never":
		return nil
	case "always":
	default:
		if !term.IsTerminal(int(os.Stderr.Fd())) {
			return nil
		}
	}
	return &itemProgress{out: os.Stderr}
}

func (p *itemProgress) Start(total int) {
	if total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription("ingesting"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *itemProgress) Increment() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(1)
}

func (p *itemProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
