package annotations

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter formats events for human-readable display, one line
// per event.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter writing to w (stdout when
// nil). Color is used only when w is an *os.File and color.NoColor is
// false; the color package sets that flag from stdout, not from w.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}
	useColor := false
	if _, ok := w.(*os.File); ok {
		useColor = !color.NoColor
	}
	return &OutputFormatter{useColor: useColor, writer: w}
}

// Handle implements Handler.
func (f *OutputFormatter) Handle(event Event) {
	if out := f.Format(event); out != "" {
		fmt.Fprintln(f.writer, out)
	}
}

// Format converts an event to a display line.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case QueryInvoked:
		return fmt.Sprintf("%s Query: %v", latency, event.Data["query"])

	case QueryCompleted:
		if errMsg, ok := event.Data["error"]; ok && errMsg != nil {
			return fmt.Sprintf("%s %s %v", latency, f.colorize("✗", color.FgRed), errMsg)
		}
		return fmt.Sprintf("%s %s Query done with %v rows.",
			latency, f.colorize("===", color.FgGreen), event.Data["rows"])

	case OperatorApplied:
		return fmt.Sprintf("%s %s %v: %v rows in, %v rows out",
			latency,
			f.colorize("->", color.FgYellow),
			event.Data["operator"],
			event.Data["rows_in"],
			event.Data["rows_out"])
	}
	return ""
}

func (f *OutputFormatter) formatLatency(d time.Duration) string {
	return fmt.Sprintf("[%8s]", d.Round(time.Microsecond))
}

func (f *OutputFormatter) colorize(s string, attr color.Attribute) string {
	if !f.useColor {
		return s
	}
	return color.New(attr).Sprint(s)
}
