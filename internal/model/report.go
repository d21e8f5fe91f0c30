package model

import (
	"sort"
	"time"
)

// RewriteReport aggregates the outcome of processing one document.
// It is built up by the pipeline steps and consumed by the report
// writers and the audit database.
type RewriteReport struct {
	// Document is the path or name of the processed document.
	Document string `json:"document"`

	// Identity is the site identity the document was classified against.
	Identity Identity `json:"identity"`

	// StartedAt is when processing of this document began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when processing completed (successfully or not).
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// TotalLinks is the number of anchor elements evaluated.
	TotalLinks int `json:"total_links"`

	// SpecialLinks counts non-navigable hrefs that were skipped.
	SpecialLinks int `json:"special_links"`

	// InternalLinks counts links classified as same-site.
	InternalLinks int `json:"internal_links"`

	// ExternalLinks counts links classified as external.
	ExternalLinks int `json:"external_links"`

	// RewrittenLinks counts elements the mutator was applied to.
	// Equals ExternalLinks unless processing was interrupted.
	RewrittenLinks int `json:"rewritten_links"`

	// SkippedLinks counts elements that were already processed by an
	// earlier pass or excluded by an ignore selector.
	SkippedLinks int `json:"skipped_links"`

	// ExternalDomains lists the distinct normalized hosts of external
	// links, sorted. Useful for auditing where a site links out to.
	ExternalDomains []string `json:"external_domains,omitempty"`

	// Findings holds the per-link classification records.
	Findings []LinkFinding `json:"findings,omitempty"`

	// ContentHash is the SHA3-256 hex digest of the document content
	// before rewriting. Used for change detection between runs.
	ContentHash string `json:"content_hash,omitempty"`

	// Error holds a processing error, if any. Excluded from JSON;
	// ErrorMessage carries the text form instead.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// externalDomainSet deduplicates ExternalDomains entries.
	externalDomainSet map[string]bool
}

// NewRewriteReport creates a report for the given document and identity.
func NewRewriteReport(document string, identity Identity) *RewriteReport {
	return &RewriteReport{
		Document:          document,
		Identity:          identity,
		StartedAt:         time.Now(),
		ExternalDomains:   make([]string, 0),
		Findings:          make([]LinkFinding, 0),
		externalDomainSet: make(map[string]bool),
	}
}

// AddExternalDomain records a distinct external host. Duplicates are
// ignored; the slice stays sorted for stable report output.
func (r *RewriteReport) AddExternalDomain(host string) {
	if host == "" {
		return
	}
	if r.externalDomainSet == nil {
		r.externalDomainSet = make(map[string]bool)
	}
	if r.externalDomainSet[host] {
		return
	}
	r.externalDomainSet[host] = true
	r.ExternalDomains = append(r.ExternalDomains, host)
	sort.Strings(r.ExternalDomains)
}

// AddFinding appends a per-link record and updates the counters.
func (r *RewriteReport) AddFinding(f LinkFinding) {
	f.ClassText = f.Class.String()
	r.Findings = append(r.Findings, f)
	r.TotalLinks++

	switch f.Class {
	case ClassSpecial:
		r.SpecialLinks++
	case ClassInternal:
		r.InternalLinks++
	case ClassExternal:
		r.ExternalLinks++
		r.AddExternalDomain(f.Host)
		if f.Rewritten {
			r.RewrittenLinks++
		}
	}
}

// SetError records a processing error on the report.
func (r *RewriteReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Finish stamps the completion time.
func (r *RewriteReport) Finish() {
	r.FinishedAt = time.Now()
}

// Duration returns the elapsed processing time, or zero if the report
// has not been finished yet.
func (r *RewriteReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
