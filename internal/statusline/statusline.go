// Package statusline prints per-step progress lines during a build,
// grounded in the teacher's LinePrinter/StatusPrinter split
// (line_printer.go, status_printer.go): a smart-terminal-aware line
// printer wrapped by a status printer that formats build events.
package statusline

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Printer prints one progress line per completed or started step, and
// a final summary line, the way the teacher's StatusPrinter does
// (status_printer.go), colorized through github.com/fatih/color
// exactly as ninja-go/graph.go does for its own status coloring.
type Printer struct {
	out       io.Writer
	completed int
	total     int
}

// New returns a Printer writing to os.Stdout.
func New(total int) *Printer {
	return &Printer{out: os.Stdout, total: total}
}

// Started reports that a step has begun running.
func (p *Printer) Started(description string) {
	fmt.Fprintf(p.out, "[%d/%d] %s\n", p.completed, p.total, description)
}

// Succeeded reports a step's successful completion.
func (p *Printer) Succeeded(description string) {
	p.completed++
	color.New(color.FgGreen).Fprintf(p.out, "[%d/%d] ", p.completed, p.total)
	fmt.Fprintln(p.out, description)
}

// Failed reports a step's failure, including its captured output.
func (p *Printer) Failed(description, output string) {
	p.completed++
	color.New(color.FgRed, color.Bold).Fprintf(p.out, "[%d/%d] FAILED: ", p.completed, p.total)
	fmt.Fprintln(p.out, description)
	if output != "" {
		fmt.Fprintln(p.out, output)
	}
}

// NoWork reports that nothing needed to be done (spec.md §4.5).
func (p *Printer) NoWork() {
	color.New(color.FgYellow).Fprintln(p.out, "no work to do")
}

// Interrupted reports that the build stopped because of a user
// interrupt (spec.md §4.7 exit code 2).
func (p *Printer) Interrupted() {
	color.New(color.FgRed).Fprintln(p.out, "build interrupted")
}

// Summary reports how a build that was not interrupted ended: success,
// or the number of steps that failed (spec.md §4.7, §7).
func (p *Printer) Summary(failed int) {
	if failed == 0 {
		color.New(color.FgGreen).Fprintln(p.out, "build succeeded")
		return
	}
	color.New(color.FgRed).Fprintf(p.out, "build failed: %d step(s) failed\n", failed)
}
