package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/linkarmor/linkarmor/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RewriteReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeDomains(md, report)
	w.writeFindings(md, report)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RewriteReport) {
	md.H1("Linkarmor Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Document", "`" + report.Document + "`"},
			{"Site Identity", "`" + identityText(report.Identity) + "`"},
			{"Run Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.RewriteReport) string {
	if report.ErrorMessage != "" {
		return "❌ Error - " + report.ErrorMessage
	}
	return "✅ Complete"
}

// writeSummary writes the classification summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.RewriteReport) {
	md.H2("Link Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Class", "Count"},
		Rows: [][]string{
			{"🔗 External", strconv.Itoa(report.ExternalLinks)},
			{"🏠 Internal", strconv.Itoa(report.InternalLinks)},
			{"⚙️ Special", strconv.Itoa(report.SpecialLinks)},
			{"⏭️ Skipped", strconv.Itoa(report.SkippedLinks)},
			{"**Total**", "**" + strconv.Itoa(report.TotalLinks) + "**"},
		},
	})
	md.PlainText("")

	switch {
	case report.ErrorMessage != "":
		md.Warningf("Run ended with an error; %d of %d external link(s) were rewritten before it stopped.",
			report.RewrittenLinks, report.ExternalLinks)
	case report.RewrittenLinks > 0:
		md.Note(fmt.Sprintf("%d external link(s) now open in a new tab with `rel=\"noopener\"`.", report.RewrittenLinks))
	default:
		md.Tip("No external links found; the document was left unchanged.")
	}
	md.PlainText("")
}

// writeDomains writes the external domain section.
func (w *MarkdownWriter) writeDomains(md *markdown.Markdown, report *model.RewriteReport) {
	md.H2("External Domains")
	md.PlainText("")

	if len(report.ExternalDomains) == 0 {
		md.PlainText("No external domains found.")
		md.PlainText("")
		return
	}

	md.BulletList(report.ExternalDomains...)
	md.PlainText("")
}

// writeFindings writes the per-link table.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.RewriteReport) {
	md.H2("Links")
	md.PlainText("")

	if len(report.Findings) == 0 {
		md.PlainText("No links evaluated.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Findings))
	for _, f := range report.Findings {
		rewritten := ""
		if f.Rewritten {
			rewritten = "✅"
		}
		rows = append(rows, []string{"`" + f.Href + "`", f.ClassText, f.Host, rewritten})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Href", "Class", "Host", "Rewritten"},
		Rows:   rows,
	})
	md.PlainText("")
}
