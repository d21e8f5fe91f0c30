package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/linkarmor/linkarmor/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showFindings enables the per-link finding listing.
	showFindings bool

	// titleCaser renders link class names as section labels.
	titleCaser cases.Caser
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithFindings enables the per-link listing in addition to the summary.
func WithFindings(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showFindings = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		titleCaser: cases.Title(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.RewriteReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeDomains(&sb, report)
	if w.showFindings {
		w.writeFindings(&sb, report)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RewriteReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         LINKARMOR REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Document:       %s\n", report.Document))
	sb.WriteString(fmt.Sprintf("Site Identity:  %s\n", identityText(report.Identity)))
	sb.WriteString(fmt.Sprintf("Run Date:       %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	if d := report.Duration(); d > 0 {
		sb.WriteString(fmt.Sprintf("Duration:       %s\n", d))
	}

	if report.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("Status:         ERROR - %s\n", report.ErrorMessage))
	} else {
		sb.WriteString("Status:         Complete\n")
	}

	sb.WriteString("\n")
}

// writeSummary writes the classification summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.RewriteReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("LINK SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  %-10s %d\n", w.classLabel(model.ClassExternal)+":", report.ExternalLinks))
	sb.WriteString(fmt.Sprintf("  %-10s %d\n", w.classLabel(model.ClassInternal)+":", report.InternalLinks))
	sb.WriteString(fmt.Sprintf("  %-10s %d\n", w.classLabel(model.ClassSpecial)+":", report.SpecialLinks))
	sb.WriteString(fmt.Sprintf("  %-10s %d\n", "Skipped:", report.SkippedLinks))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  TOTAL:     %d links, %d rewritten\n", report.TotalLinks, report.RewrittenLinks))
	sb.WriteString("\n")
}

// writeDomains writes the external domain section.
func (w *SimpleWriter) writeDomains(sb *strings.Builder, report *model.RewriteReport) {
	if len(report.ExternalDomains) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("EXTERNAL DOMAINS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, host := range report.ExternalDomains {
		sb.WriteString(fmt.Sprintf("  [+] %s\n", host))
	}
	sb.WriteString("\n")
}

// writeFindings writes the per-link listing.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *model.RewriteReport) {
	if len(report.Findings) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("LINKS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, f := range report.Findings {
		marker := " "
		if f.Rewritten {
			marker = "*"
		}
		sb.WriteString(fmt.Sprintf("  %s [%s] %s\n", marker, w.classLabel(f.Class), f.Href))
	}
	sb.WriteString("\n  * = rewritten to open in a new tab\n\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by linkarmor\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// classLabel renders a link class as a title-cased label.
func (w *SimpleWriter) classLabel(c model.LinkClass) string {
	return w.titleCaser.String(c.String())
}

// identityText renders the site identity for display.
func identityText(id model.Identity) string {
	if id.Host == "" {
		return "(none - all absolute links external)"
	}
	return id.EffectiveScheme() + "://" + id.Host
}
