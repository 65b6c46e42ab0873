package main

import (
	"fmt"
	"sync"

	"github.com/fatih/color"
	"github.com/homeboy445/fileSharerApp/internal/transfer"
)

// progressPrinter prints one line per file per ten percent step.
type progressPrinter struct {
	mu   sync.Mutex
	last map[string]int
	done map[string]bool
}

func newProgressPrinter() *progressPrinter {
	return &progressPrinter{last: make(map[string]int), done: make(map[string]bool)}
}

func (p *progressPrinter) print(ev transfer.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done[ev.FileID] {
		return
	}
	name := ev.Name
	if name == "" {
		name = ev.FileID
	}
	if ev.Done {
		p.done[ev.FileID] = true
		color.Green("  %s done", name)
		return
	}
	step := ev.Percent / 10 * 10
	if prev, seen := p.last[ev.FileID]; seen && step <= prev {
		return
	}
	p.last[ev.FileID] = step
	fmt.Printf("  %s %3d%%\n", name, step)
}
