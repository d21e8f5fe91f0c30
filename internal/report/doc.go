// Package report renders rewrite run results in multiple output formats.
//
// Three writers are provided: SimpleWriter for terminal display,
// JSONWriter for tool integration, and MarkdownWriter for documentation
// and sharing. MultiWriter fans a report out to several destinations at
// once, so a run can print to the terminal and save a file in one pass.
package report
