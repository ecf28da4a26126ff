package main

import (
	"fmt"
	"io"
	"time"

	"stockmeta/internal/batch"
	"stockmeta/internal/queue"
)

const (
	ansiReset = "\033[0m"
	ansiGreen = "\033[32m"
	ansiRed   = "\033[31m"
)

// progressPrinter reports one line per item while a run is in progress.
type progressPrinter struct {
	out      io.Writer
	model    string
	colorize bool

	total int
	index int
}

func newProgressPrinter(out io.Writer, model string, colorize bool) *progressPrinter {
	return &progressPrinter{out: out, model: model, colorize: colorize}
}

func (p *progressPrinter) RunStarted(_ string, pending int) {
	p.total = pending
	p.index = 0
	fmt.Fprintf(p.out, "Processing %d file(s) with %s\n", pending, p.model)
}

func (p *progressPrinter) ItemStarted(_ string, item queue.Item) {
	p.index++
	fmt.Fprintf(p.out, "[%d/%d] %s ... ", p.index, p.total, item.Name)
}

func (p *progressPrinter) ItemFinished(_ string, item queue.Item, elapsed time.Duration) {
	if item.Status == queue.StatusCompleted {
		fmt.Fprintf(p.out, "%s (%s)\n", p.paint(ansiGreen, item.Status.Label()), elapsed.Round(10*time.Millisecond))
		return
	}
	fmt.Fprintf(p.out, "%s: %s\n", p.paint(ansiRed, item.Status.Label()), item.ErrorMessage)
}

func (p *progressPrinter) RunFinished(string, batch.Summary) {}

func (p *progressPrinter) paint(color, value string) string {
	if !p.colorize {
		return value
	}
	return color + value + ansiReset
}

var _ batch.Observer = (*progressPrinter)(nil)
