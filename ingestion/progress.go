package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// progressTracker reports batch progress for long-running runs. Output
// goes to a single line rewritten in place with carriage returns. A
// total of zero means the total is unknown; percentages are omitted.
type progressTracker struct {
	mu       sync.Mutex
	w        io.Writer
	total    int
	done     int
	sinceLog int
	every    int
	begun    time.Time
}

func newProgressTracker(w io.Writer, total, every int) *progressTracker {
	return &progressTracker{w: w, total: total, every: every, begun: time.Now()}
}

// Add records delta completed items, emitting a progress line each time
// the report interval is crossed.
func (p *progressTracker) Add(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done += delta
	if p.total > 0 && p.done > p.total {
		p.done = p.total
	}
	p.sinceLog += delta
	if p.sinceLog >= p.every {
		p.sinceLog = 0
		p.line()
	}
}

// Finish prints the final progress line and terminates it.
func (p *progressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total > 0 {
		p.done = p.total
	}
	p.line()
	fmt.Fprintln(p.w)
}

// Elapsed reports time since the tracker was created.
func (p *progressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.begun)
}

func (p *progressTracker) line() {
	rate := float64(p.done) / time.Since(p.begun).Seconds()
	if p.total > 0 {
		pct := 100 * float64(p.done) / float64(p.total)
		fmt.Fprintf(p.w, "\rProgress: %d/%d (%.1f%%) - %.1f chunks/s", p.done, p.total, pct, rate)
		return
	}
	fmt.Fprintf(p.w, "\rProgress: %d chunks - %.1f chunks/s", p.done, rate)
}
