package report

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gruntwork-io/actiontree/action"
	"github.com/mattn/go-isatty"
)

const (
	prefix              = "   "
	runSummaryHeader    = "❯❯ Run Summary"
	successLabel        = "Succeeded"
	failureLabel        = "Failed"
	cancelLabel         = "Canceled"
	separatorLineLength = 28
	labelColumnWidth    = 14
)

// Summary formats data from a report for output as a summary.
type Summary struct {
	firstStart   *time.Time
	lastEnd      *time.Time
	failedLabels []string
	Total        int
	Succeeded    int
	Failed       int
	Canceled     int
	shouldColor  bool
}

// SummaryOption configures a Summary.
type SummaryOption func(*Summary)

// WithColor enables colored output.
func WithColor(shouldColor bool) SummaryOption {
	return func(s *Summary) {
		s.shouldColor = shouldColor
	}
}

// WithColorIfTerminal enables colored output when w is a terminal.
func WithColorIfTerminal(w io.Writer) SummaryOption {
	return func(s *Summary) {
		if file, ok := w.(*os.File); ok {
			s.shouldColor = isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
		}
	}
}

// Summarize returns a summary of the report.
func (r *Report) Summarize(opts ...SummaryOption) *Summary {
	summary := &Summary{}

	for _, opt := range opts {
		opt(summary)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.actions {
		summary.Update(*r.statuses[a])
	}

	return summary
}

// Update adds a status record to the summary.
func (s *Summary) Update(status ActionStatus) {
	s.Total++

	switch status.Status {
	case action.Successful:
		s.Succeeded++
	case action.Failed:
		s.Failed++
		s.failedLabels = append(s.failedLabels, status.Label)
	case action.Canceled:
		s.Canceled++
	case action.Pending, action.Ready, action.Running:
	}

	if !status.StartTime.IsZero() && (s.firstStart == nil || status.StartTime.Before(*s.firstStart)) {
		start := status.StartTime
		s.firstStart = &start
	}

	if end := status.EndTime(); !end.IsZero() && (s.lastEnd == nil || end.After(*s.lastEnd)) {
		s.lastEnd = &end
	}
}

// TotalDuration returns the time between the first start and the last end.
func (s *Summary) TotalDuration() time.Duration {
	if s.firstStart == nil || s.lastEnd == nil {
		return 0
	}

	return s.lastEnd.Sub(*s.firstStart)
}

// WriteSummary writes the summary of the report to a writer.
func (r *Report) WriteSummary(w io.Writer, opts ...SummaryOption) error {
	summary := r.Summarize(opts...)

	if summary.Total == 0 {
		return nil
	}

	return summary.Write(w)
}

// Write writes the summary to a writer.
func (s *Summary) Write(w io.Writer) error {
	colorizer := NewColorizer(s.shouldColor)

	header := fmt.Sprintf("%s  %s  %s",
		colorizer.headingTitleColorizer(runSummaryHeader),
		colorizer.headingCountColorizer(fmt.Sprintf("%d actions", s.Total)),
		colorizer.colorDuration(s.TotalDuration()),
	)
	if _, err := fmt.Fprintf(w, "%s\n%s%s\n", header, prefix, strings.Repeat("─", separatorLineLength)); err != nil {
		return err
	}

	entries := []struct {
		colorizer func(string) string
		label     string
		count     int
	}{
		{colorizer: colorizer.successColorizer, label: successLabel, count: s.Succeeded},
		{colorizer: colorizer.failureColorizer, label: failureLabel, count: s.Failed},
		{colorizer: colorizer.cancelColorizer, label: cancelLabel, count: s.Canceled},
	}

	for _, entry := range entries {
		if entry.count == 0 {
			continue
		}

		if err := writeSummaryEntry(w, entry.colorizer(entry.label), strconv.Itoa(entry.count)); err != nil {
			return err
		}
	}

	for _, label := range s.failedLabels {
		if _, err := fmt.Fprintf(w, "%s%s%s\n", prefix, prefix, colorizer.failureColorizer(label)); err != nil {
			return err
		}
	}

	return nil
}

func writeSummaryEntry(w io.Writer, label string, value string) error {
	padding := max(2, labelColumnWidth-visualLength(label)) //nolint:mnd

	_, err := fmt.Fprintf(w, "%s%s%s%s\n", prefix, label, strings.Repeat(" ", padding), value)

	return err
}

// ansiRegex is used to remove ANSI escape codes from strings.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// visualLength calculates the visual length of a string by removing ANSI escape codes
func visualLength(text string) int {
	return len(ansiRegex.ReplaceAllString(text, ""))
}
