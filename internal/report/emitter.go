// Package report renders diagnostic results and writes them out.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/user/netreport/internal/model"
)

// Separator precedes every report written to standard output.
var Separator = strings.Repeat("-", 86) + "\n"

// ReportWriteError reports a report destination that could not be opened or
// written.
type ReportWriteError struct {
	Path string
	Err  error
}

func (e *ReportWriteError) Error() string {
	dest := e.Path
	if dest == "" {
		dest = "standard output"
	}
	return fmt.Sprintf("unable to write report to %s: %v", dest, e.Err)
}

func (e *ReportWriteError) Unwrap() error {
	return e.Err
}

// Emitter writes reports to a file or to standard output.
type Emitter struct {
	Stdout io.Writer
}

// NewEmitter creates an emitter streaming to stdout when no report path is set.
func NewEmitter(stdout io.Writer) *Emitter {
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Emitter{Stdout: stdout}
}

// Emit writes the ping output followed by the optional bandwidth and
// traceroute sections. With an output path the report is appended to that
// file; otherwise it goes to Stdout after a separator line.
func (e *Emitter) Emit(req model.ReportRequest, ping *model.CommandResult, bw *model.BandwidthReport, trace *model.TracerouteResult) (err error) {
	if req.OutputPath == "" {
		out := e.Stdout
		if out == nil {
			out = os.Stdout
		}
		sw := newSectionWriter(out, req.Format)
		sw.write(Separator)
		sw.sections(ping, bw, trace)
		if sw.err != nil {
			return &ReportWriteError{Err: sw.err}
		}
		return nil
	}

	file, err := os.OpenFile(req.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &ReportWriteError{Path: req.OutputPath, Err: err}
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = &ReportWriteError{Path: req.OutputPath, Err: cerr}
		}
	}()

	sw := newSectionWriter(file, req.Format)
	sw.sections(ping, bw, trace)
	if sw.err != nil {
		return &ReportWriteError{Path: req.OutputPath, Err: sw.err}
	}
	return nil
}

// sectionWriter stops at the first failed write.
type sectionWriter struct {
	w        io.Writer
	r        *lipgloss.Renderer
	markdown bool
	err      error
}

func newSectionWriter(w io.Writer, format string) *sectionWriter {
	r := lipgloss.NewRenderer(w)
	markdown := format == model.FormatMarkdown
	if markdown {
		r.SetColorProfile(termenv.Ascii)
	}
	return &sectionWriter{w: w, r: r, markdown: markdown}
}

func (s *sectionWriter) write(text string) {
	if s.err != nil || text == "" {
		return
	}
	_, s.err = io.WriteString(s.w, text)
}

func (s *sectionWriter) section(title, body string) {
	if body == "" {
		return
	}
	if !s.markdown {
		s.write(body)
		return
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	s.write(fmt.Sprintf("## %s\n\n```text\n%s```\n\n", title, body))
}

func (s *sectionWriter) sections(ping *model.CommandResult, bw *model.BandwidthReport, trace *model.TracerouteResult) {
	if ping != nil {
		s.section("Ping", ping.Stdout)
		s.section("Ping errors", ping.Stderr)
	}

	if bw != nil {
		s.section("Bandwidth", RenderBandwidthTable(s.r, bw))
		if !s.markdown {
			s.write("\n")
		}
		s.section("Speed comparison", RenderChart(s.r, ComparisonRows(bw)))
	}

	if trace != nil {
		s.section("Traceroute", RenderTraceSummary(s.r, trace))
		if s.markdown {
			s.write("## Path\n\n" + GenerateMermaidDiagram(trace) + "\n")
		}
	}
}
