// Package search implements relevance scoring, response shaping, and the
// fan-out engine that ties the query, resources, and cache packages
// together into a single Search operation.
package search

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pmbridge/mediation-server/internal/config"
	"github.com/pmbridge/mediation-server/internal/resources"
)

// Optimizer scores, deduplicates, limits, trims, and highlights the raw
// results a fan-out produces before they're handed to the formatter.
type Optimizer struct {
	cfg config.OptimizerConfig
}

// NewOptimizer builds an optimizer from the given configuration.
func NewOptimizer(cfg config.OptimizerConfig) *Optimizer {
	return &Optimizer{cfg: cfg}
}

// Score computes a result's relevance against the query text: per-term
// exact/partial match strength against title, description (weighted a
// third as much), and identifier (exact matches only), combined with an
// exponential recency term, weighted-averaged and clamped to
// [MinScore, MaxScore]. An empty query text scores purely on recency.
func (o *Optimizer) Score(r resources.SearchResult, queryText string) float64 {
	terms := extractTerms(queryText)

	titleScore := o.termScore(r.Title, terms, 1, true)
	descScore := o.termScore(r.Description, terms, 3, true)
	idScore := o.termScore(r.Identifier, terms, 1, false)
	recency := o.recencyScore(r.UpdatedAt)

	weightSum := o.cfg.TitleWeight + o.cfg.DescriptionWeight + o.cfg.IdentifierWeight + o.cfg.RecencyWeight
	if weightSum == 0 {
		return o.cfg.MinScore
	}

	weighted := titleScore*o.cfg.TitleWeight +
		descScore*o.cfg.DescriptionWeight +
		idScore*o.cfg.IdentifierWeight +
		recency*o.cfg.RecencyWeight
	final := weighted / weightSum

	if final < o.cfg.MinScore {
		final = o.cfg.MinScore
	}
	if final > o.cfg.MaxScore {
		final = o.cfg.MaxScore
	}
	return final
}

// termScore averages each term's match strength against field over
// max(len(terms),1), divides by denomScale (3 for description, cutting
// its match strength to a third), and caps the result at MaxScore.
// allowPartial disables the partial-match boost for identifier scoring,
// which only credits exact term matches.
func (o *Optimizer) termScore(field string, terms []string, denomScale float64, allowPartial bool) float64 {
	if field == "" || len(terms) == 0 {
		return 0
	}
	lowerField := strings.ToLower(field)
	words := splitWords(lowerField)

	var sum float64
	for _, term := range terms {
		exact := false
		for _, w := range words {
			if w == term {
				exact = true
				break
			}
		}
		switch {
		case exact:
			sum += o.cfg.ExactBoost
		case allowPartial && strings.Contains(lowerField, term):
			sum += o.cfg.PartialBoost
		}
	}

	denom := float64(len(terms))
	if denom < 1 {
		denom = 1
	}
	denom *= denomScale

	score := sum / denom
	if score > o.cfg.MaxScore {
		score = o.cfg.MaxScore
	}
	return score
}

// extractTerms pulls alphanumeric words of length >= 3 out of a query
// string, stripping the AND/OR operators and deduplicating case-insensitively.
func extractTerms(text string) []string {
	var terms []string
	seen := make(map[string]struct{})
	for _, word := range splitWords(strings.ToLower(text)) {
		if len(word) < 3 || word == "and" || word == "or" {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		terms = append(terms, word)
	}
	return terms
}

// splitWords lowercases-agnostic word splitting on any non-alphanumeric rune.
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
}

// recencyScore decays exponentially: 2^(-daysSinceUpdate/decayDays), so it
// halves every decayDays days and never goes negative.
func (o *Optimizer) recencyScore(updatedAt time.Time) float64 {
	if updatedAt.IsZero() || o.cfg.RecencyDecayDays <= 0 {
		return 0
	}
	ageDays := time.Since(updatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(2, -ageDays/o.cfg.RecencyDecayDays)
}

// Deduplicate drops results whose lowercased title or (non-empty)
// lowercased identifier matches a result already kept, keeping the first
// occurrence in the order given.
func Deduplicate(results []resources.SearchResult) []resources.SearchResult {
	titles := make(map[string]struct{}, len(results))
	ids := make(map[string]struct{}, len(results))
	out := make([]resources.SearchResult, 0, len(results))
	for _, r := range results {
		title := strings.ToLower(r.Title)
		id := strings.ToLower(r.Identifier)
		if _, ok := titles[title]; ok {
			continue
		}
		if _, ok := ids[id]; ok && id != "" {
			continue
		}
		titles[title] = struct{}{}
		ids[id] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Limit caps results per resource type at MaxResultsPerType (keeping the
// highest-scoring within each type), then caps the overall total at
// MaxTotalResults (keeping the highest-scoring overall).
func (o *Optimizer) Limit(results []resources.SearchResult) []resources.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	perType := make(map[resources.Type]int)
	capped := make([]resources.SearchResult, 0, len(results))
	for _, r := range results {
		if o.cfg.MaxResultsPerType > 0 && perType[r.ResourceType] >= o.cfg.MaxResultsPerType {
			continue
		}
		perType[r.ResourceType]++
		capped = append(capped, r)
	}

	if o.cfg.MaxTotalResults > 0 && len(capped) > o.cfg.MaxTotalResults {
		capped = capped[:o.cfg.MaxTotalResults]
	}
	return capped
}

// Trim truncates an over-long description to MaxDescriptionLength,
// preferring to cut at a sentence boundary found within 40 characters of
// the hard cutoff. It returns the (possibly shortened) text and whether
// truncation occurred.
func (o *Optimizer) Trim(description string) (string, bool) {
	if o.cfg.MaxDescriptionLength <= 0 || len(description) <= o.cfg.MaxDescriptionLength {
		return description, false
	}

	cut := o.cfg.MaxDescriptionLength
	lookback := cut - 40
	if lookback < 0 {
		lookback = 0
	}

	window := description[lookback:cut]
	if idx := strings.LastIndexAny(window, ".!?"); idx >= 0 {
		return description[:lookback+idx+1], true
	}
	return strings.TrimRight(description[:cut], " ") + "...", true
}

// Highlight wraps up to MaxFragments non-overlapping matches of query
// within text with the configured highlight tags, returning a context
// window of FragmentSize characters around each match. Fragments are
// returned in reverse order of appearance in the source text, matching the
// order the tag-wrapping pass applies them in (innermost/rightmost first
// avoids shifting earlier offsets).
func (o *Optimizer) Highlight(text, query string) []string {
	if text == "" || query == "" {
		return nil
	}
	lowerText := strings.ToLower(text)
	lowerQuery := strings.ToLower(query)

	var offsets []int
	start := 0
	for len(offsets) < o.cfg.MaxFragments {
		idx := strings.Index(lowerText[start:], lowerQuery)
		if idx < 0 {
			break
		}
		offsets = append(offsets, start+idx)
		start += idx + len(lowerQuery)
	}
	if len(offsets) == 0 {
		return nil
	}

	fragments := make([]string, 0, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		fragments = append(fragments, o.buildFragment(text, offsets[i], len(query)))
	}
	return fragments
}

func (o *Optimizer) buildFragment(text string, matchStart, matchLen int) string {
	half := o.cfg.FragmentSize / 2
	from := matchStart - half
	if from < 0 {
		from = 0
	}
	to := matchStart + matchLen + half
	if to > len(text) {
		to = len(text)
	}

	before := text[from:matchStart]
	match := text[matchStart : matchStart+matchLen]
	after := text[matchStart+matchLen : to]

	var b strings.Builder
	b.WriteString(before)
	b.WriteString(o.cfg.HighlightTagOpen)
	b.WriteString(match)
	b.WriteString(o.cfg.HighlightTagClose)
	b.WriteString(after)
	return b.String()
}

// Group buckets results by a named field, defaulting to resource type when
// field is empty or unrecognized.
func Group(results []resources.SearchResult, field string) map[string][]resources.SearchResult {
	groups := make(map[string][]resources.SearchResult)
	for _, r := range results {
		key := groupKey(r, field)
		groups[key] = append(groups[key], r)
	}
	return groups
}

func groupKey(r resources.SearchResult, field string) string {
	switch field {
	case "team":
		return r.Team
	default:
		return string(r.ResourceType)
	}
}

// dateLayouts are the two layouts FormatDate renders with: a full
// timestamp, or a bare date for times at exactly midnight.
const (
	dateTimeLayout = "2006-01-02 15:04"
	dateOnlyLayout = "2006-01-02"
)

// FormatDate renders t in the full layout unless it falls exactly at
// midnight, in which case the bare date layout is used.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(dateOnlyLayout)
	}
	return t.Format(dateTimeLayout)
}
