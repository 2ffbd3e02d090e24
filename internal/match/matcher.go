// SPDX-License-Identifier: Apache-2.0

package match

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/partsproj/parts-mcp/internal/bom"
	"github.com/partsproj/parts-mcp/internal/cache"
	"github.com/partsproj/parts-mcp/internal/catalog"
	"github.com/partsproj/parts-mcp/internal/metrics"
)

// Basis names the strategy that produced a candidate.
type Basis string

const (
	BasisExactMPN         Basis = "exact_mpn"
	BasisValueFootprint   Basis = "value_footprint"
	BasisFuzzyDescription Basis = "fuzzy_description"
)

// Status is the resolved outcome for one row.
type Status string

const (
	StatusMatched   Status = "matched"
	StatusAmbiguous Status = "ambiguous"
	StatusUnmatched Status = "unmatched"
)

// Candidate is one catalog part proposed for a row.
type Candidate struct {
	PartID     string       `json:"catalog_part_id"`
	Confidence float64      `json:"confidence"`
	Basis      Basis        `json:"match_basis"`
	Part       catalog.Part `json:"part"`
}

// RowResult pairs a canonical row with its ordered candidates and
// resolved status. An empty candidate list with StatusUnmatched is a
// normal, successful result.
type RowResult struct {
	Row         bom.CanonicalRow `json:"row"`
	Candidates  []Candidate      `json:"candidates"`
	Status      Status           `json:"status"`
	Diagnostics []bom.Diagnostic `json:"diagnostics,omitempty"`
}

// Options are the tunable matching parameters. Thresholds are product
// decisions, so they are configuration with documented defaults rather
// than constants.
type Options struct {
	// AcceptThreshold is the minimum top-candidate confidence for a
	// matched status.
	AcceptThreshold float64
	// AmbiguityMargin: a runner-up within this distance of the top
	// candidate makes the row ambiguous.
	AmbiguityMargin float64
	// ValueTolerancePct is the tolerance for component value agreement.
	ValueTolerancePct float64
	// LookupTTL is how long catalog responses stay cached.
	LookupTTL time.Duration
	// RowTimeout bounds all catalog lookups for one row; on expiry the
	// row resolves unmatched with a diagnostic.
	RowTimeout time.Duration
	// Workers bounds concurrent row matching.
	Workers int
}

// DefaultOptions mirror the catalog service's confidence tiers.
func DefaultOptions() Options {
	return Options{
		AcceptThreshold:   0.8,
		AmbiguityMargin:   0.05,
		ValueTolerancePct: 5.0,
		LookupTTL:         24 * time.Hour,
		RowTimeout:        30 * time.Second,
		Workers:           4,
	}
}

// Matcher resolves canonical rows to catalog candidates, consulting the
// shared cache before every external lookup.
type Matcher struct {
	searcher catalog.Searcher
	cache    *cache.Store
	opts     Options
	logger   *zap.Logger
}

// NewMatcher creates a Matcher. A nil logger defaults to zap.NewNop.
func NewMatcher(searcher catalog.Searcher, store *cache.Store, opts Options, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Matcher{searcher: searcher, cache: store, opts: opts, logger: logger}
}

// MatchBOM matches every row on a bounded worker pool. Results are
// collected by index so report order always follows BOM order regardless
// of completion order. On cancellation no partial report is returned.
func (m *Matcher) MatchBOM(ctx context.Context, rows []bom.CanonicalRow, parseDiags []bom.Diagnostic) (*Report, error) {
	results := make([]RowResult, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = m.MatchRow(gctx, row)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("BOM matching aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("BOM matching aborted: %w", err)
	}

	return Aggregate(results, parseDiags), nil
}

// MatchRow runs the strategy cascade for one row, stopping at the first
// strategy that produces any candidate. Catalog failures degrade the row
// to unmatched with a diagnostic instead of failing the pipeline.
func (m *Matcher) MatchRow(ctx context.Context, row bom.CanonicalRow) RowResult {
	if m.opts.RowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.RowTimeout)
		defer cancel()
	}

	candidates, err := m.runStrategies(ctx, row)
	if err != nil {
		return m.degradedRow(ctx, row, err)
	}

	result := resolve(row, candidates, m.opts.AcceptThreshold, m.opts.AmbiguityMargin)
	metrics.RowsMatched.WithLabelValues(string(result.Status)).Inc()
	return result
}

func (m *Matcher) runStrategies(ctx context.Context, row bom.CanonicalRow) ([]Candidate, error) {
	if row.MPN != "" {
		candidates, err := m.matchByMPN(ctx, row)
		if err != nil || len(candidates) > 0 {
			return candidates, err
		}
	}
	if row.Value != "" && row.Footprint != "" {
		candidates, err := m.matchByValueFootprint(ctx, row)
		if err != nil || len(candidates) > 0 {
			return candidates, err
		}
	}
	if row.Description != "" {
		return m.matchByDescription(ctx, row)
	}
	return nil, nil
}

func (m *Matcher) matchByMPN(ctx context.Context, row bom.CanonicalRow) ([]Candidate, error) {
	want := normalizeMPN(row.MPN)
	fp := cache.Fingerprint(row.MPN, "", "", "")
	parts, err := m.cache.GetOrCompute(ctx, fp, m.opts.LookupTTL, func(ctx context.Context) ([]catalog.Part, error) {
		return m.searcher.LookupMPN(ctx, row.MPN)
	})
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, part := range parts {
		if normalizeMPN(part.MPN) == want {
			candidates = append(candidates, Candidate{
				PartID:     part.ID,
				Confidence: 1.0,
				Basis:      BasisExactMPN,
				Part:       part,
			})
		}
	}
	return sortCandidates(candidates), nil
}

func (m *Matcher) matchByValueFootprint(ctx context.Context, row bom.CanonicalRow) ([]Candidate, error) {
	fp := cache.Fingerprint("", row.Value, row.Footprint, "")
	parts, err := m.cache.GetOrCompute(ctx, fp, m.opts.LookupTTL, func(ctx context.Context) ([]catalog.Part, error) {
		return m.searcher.LookupValueFootprint(ctx, row.Value, row.Footprint)
	})
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, part := range parts {
		valueAgrees := part.Value != "" && ValuesMatch(row.Value, part.Value, m.opts.ValueTolerancePct)
		footprintAgrees := part.Footprint != "" && FootprintsCompatible(row.Footprint, part.Footprint)
		if !valueAgrees && !footprintAgrees {
			continue
		}
		facets := 0
		if valueAgrees {
			facets++
		}
		if footprintAgrees {
			facets++
		}
		if row.Description != "" && tokenOverlap(row.Description, part.Description) > 0 {
			facets++
		}
		// One agreeing facet scores 0.5, each further facet adds 0.2,
		// staying inside the [0.5, 0.9] band for this strategy.
		candidates = append(candidates, Candidate{
			PartID:     part.ID,
			Confidence: 0.5 + 0.2*float64(facets-1),
			Basis:      BasisValueFootprint,
			Part:       part,
		})
	}
	return sortCandidates(candidates), nil
}

func (m *Matcher) matchByDescription(ctx context.Context, row bom.CanonicalRow) ([]Candidate, error) {
	fp := cache.Fingerprint("", "", "", row.Description)
	parts, err := m.cache.GetOrCompute(ctx, fp, m.opts.LookupTTL, func(ctx context.Context) ([]catalog.Part, error) {
		return m.searcher.LookupDescription(ctx, row.Description)
	})
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, part := range parts {
		confidence := 0.6 * tokenOverlap(row.Description, part.Description)
		if confidence >= 0.6 {
			confidence = 0.59
		}
		if confidence <= 0 {
			continue
		}
		// A partial value or footprint agreement lifts the fuzzy score
		// above the strategy's usual sub-threshold cap.
		if partialValueAgreement(row.Value, part.Value) ||
			(row.Footprint != "" && FootprintsCompatible(row.Footprint, part.Footprint)) {
			confidence += 0.15
			if confidence > 0.75 {
				confidence = 0.75
			}
		}
		candidates = append(candidates, Candidate{
			PartID:     part.ID,
			Confidence: confidence,
			Basis:      BasisFuzzyDescription,
			Part:       part,
		})
	}
	return sortCandidates(candidates), nil
}

// degradedRow classifies a lookup failure (timeout vs service failure)
// and resolves the row unmatched with a diagnostic.
func (m *Matcher) degradedRow(ctx context.Context, row bom.CanonicalRow, err error) RowResult {
	message := fmt.Sprintf("catalog lookup failed for %s: %v", row.Ref(), err)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		message = fmt.Sprintf("catalog lookup for %s timed out after %s", row.Ref(), m.opts.RowTimeout)
	}
	m.logger.Warn("row degraded to unmatched",
		zap.String("ref", row.Ref()),
		zap.Error(err))
	metrics.RowsMatched.WithLabelValues(string(StatusUnmatched)).Inc()
	return RowResult{
		Row:    row,
		Status: StatusUnmatched,
		Diagnostics: []bom.Diagnostic{{
			Severity: bom.SeverityWarning,
			Ref:      row.Ref(),
			Line:     row.SourceLine,
			Message:  message,
		}},
	}
}

// resolve computes the row status from its ordered candidates: matched iff
// the top candidate clears the acceptance threshold with no runner-up
// inside the ambiguity margin; ambiguous iff two or more candidates sit
// within the margin; unmatched otherwise.
func resolve(row bom.CanonicalRow, candidates []Candidate, accept, margin float64) RowResult {
	result := RowResult{Row: row, Candidates: candidates, Status: StatusUnmatched}
	if len(candidates) == 0 {
		return result
	}

	top := candidates[0].Confidence
	withinMargin := 0
	for _, c := range candidates {
		if top-c.Confidence <= margin {
			withinMargin++
		}
	}

	switch {
	case withinMargin >= 2:
		result.Status = StatusAmbiguous
	case top >= accept:
		result.Status = StatusMatched
	}
	return result
}

// sortCandidates orders by confidence descending, ties broken by part ID
// ascending so results are deterministic. Duplicate part IDs keep the
// highest-confidence entry.
func sortCandidates(candidates []Candidate) []Candidate {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].PartID < candidates[j].PartID
	})
	out := candidates[:0]
	seen := map[string]bool{}
	for _, c := range candidates {
		if seen[c.PartID] {
			continue
		}
		seen[c.PartID] = true
		out = append(out, c)
	}
	return out
}

var nonAlphanumericRe = regexp.MustCompile(`[^A-Z0-9]`)

// normalizeMPN canonicalizes a manufacturer part number for exact
// comparison: upper-cased with punctuation stripped.
func normalizeMPN(mpn string) string {
	return nonAlphanumericRe.ReplaceAllString(strings.ToUpper(mpn), "")
}

// tokenOverlap is the Jaccard similarity of the two strings' token sets.
func tokenOverlap(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	intersection := 0
	for t := range ta {
		if tb[t] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

var tokenSplitRe = regexp.MustCompile(`[^a-z0-9.]+`)

func tokenize(s string) map[string]bool {
	tokens := map[string]bool{}
	for _, t := range tokenSplitRe.Split(strings.ToLower(s), -1) {
		if len(t) >= 2 {
			tokens[t] = true
		}
	}
	return tokens
}

// partialValueAgreement reports whether two values are in the same
// neighborhood without matching within tolerance, the partial credit the
// fuzzy strategy accepts.
func partialValueAgreement(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	pa, pb := ParseValue(a), ParseValue(b)
	if !pa.HasNumeric || !pb.HasNumeric || pa.Numeric == 0 || pb.Numeric == 0 {
		return false
	}
	ratio := pa.Numeric / pb.Numeric
	if ratio > 1 {
		ratio = 1 / ratio
	}
	return ratio > 0.5
}
