package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

func writerIsTTY(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && isatty.IsTerminal(f.Fd())
}

// ProgressBar tracks a load measured in units (usually line items) and,
// optionally, the transactions those units belong to.
//
//	[=========>          ]  45% 4,500/10,000 line items, 1,500 transactions
//
// On a terminal the line is redrawn in place. Anything else gets a single
// line once the load completes, so logs and pipes stay clean.
type ProgressBar struct {
	mu      sync.Mutex
	w       io.Writer
	width   int
	unit    string
	total   int
	done    int
	txns    int
	printed bool
}

// NewProgress creates a bar for total units. It writes to stderr.
func NewProgress(total int, unit string) *ProgressBar {
	return &ProgressBar{w: os.Stderr, width: 40, unit: unit, total: total}
}

// SetWidth sets the bar width in characters.
func (p *ProgressBar) SetWidth(width int) {
	p.mu.Lock()
	p.width = width
	p.mu.Unlock()
}

// SetWriter redirects output.
func (p *ProgressBar) SetWriter(w io.Writer) {
	p.mu.Lock()
	p.w = w
	p.mu.Unlock()
}

// Increment records one more unit.
func (p *ProgressBar) Increment() {
	p.Advance(1, 0)
}

// IncrementBy records n more units.
func (p *ProgressBar) IncrementBy(n int) {
	p.Advance(n, 0)
}

// Advance records n more units belonging to txns more transactions.
func (p *ProgressBar) Advance(n, txns int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txns += txns
	p.set(p.done + n)
}

// SetCurrent sets the number of units done.
func (p *ProgressBar) SetCurrent(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(current)
}

// Finish marks the load complete.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(p.total)
	if writerIsTTY(p.w) {
		fmt.Fprintln(p.w)
	}
}

// set clamps done to total and redraws. Callers hold mu.
func (p *ProgressBar) set(done int) {
	p.done = min(done, p.total)
	if writerIsTTY(p.w) {
		fmt.Fprint(p.w, "\r"+p.line())
		return
	}
	if p.done == p.total && !p.printed {
		p.printed = true
		fmt.Fprintln(p.w, p.line())
	}
}

func (p *ProgressBar) line() string {
	pct, filled := 0, 0
	if p.total > 0 {
		pct = p.done * 100 / p.total
		filled = p.done * p.width / p.total
	}

	bar := strings.Repeat(" ", p.width)
	if filled > 0 {
		bar = strings.Repeat("=", filled-1) + ">" + strings.Repeat(" ", p.width-filled)
	}

	s := fmt.Sprintf("[%s] %3d%% %s/%s %s", bar, pct,
		humanize.Comma(int64(p.done)), humanize.Comma(int64(p.total)), p.unit)
	if p.txns > 0 {
		s += fmt.Sprintf(", %s transactions", humanize.Comma(int64(p.txns)))
	}
	return s
}

// Spinner shows that a step of unknown length, such as rebuilding statistics
// from stored history, is still running.
//
//	/  Rebuilding co-occurrence statistics (3s)
type Spinner struct {
	mu      sync.Mutex
	w       io.Writer
	message string
	started time.Time
	stop    chan struct{}
}

const spinnerFrames = `|/-\`

// NewSpinner creates a stopped spinner writing to stderr.
func NewSpinner(message string) *Spinner {
	return &Spinner{w: os.Stderr, message: message}
}

// SetWriter redirects output.
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// Start shows the spinner. Off a terminal the message is printed once with
// no animation. Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.started = time.Now()

	if !writerIsTTY(s.w) {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		return
	}
	go s.animate(s.stop)
}

func (s *Spinner) animate(stop <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for frame := 0; ; frame++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r%c  %s (%ds)", spinnerFrames[frame%len(spinnerFrames)],
				s.message, int(time.Since(s.started).Seconds()))
			s.mu.Unlock()
		}
	}
}

// Stop ends the animation and clears its line. Stopping twice is harmless.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
	if writerIsTTY(s.w) {
		fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.message)+16))
	}
}

// UpdateMessage replaces the message shown next to the spinner.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// StopWithMessage stops the spinner and prints message on its own line.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, message)
}
