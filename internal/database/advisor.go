package database

import (
	"hash/fnv"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Advice is the advisor's verdict on a query: developer-facing hints plus
// a cache recommendation. The cost is an additive heuristic score, not a
// plan estimate, and never changes execution.
type Advice struct {
	Suggestions         []string
	EstimatedCost       float64
	CacheRecommendation bool
}

// QueryAdvisor performs static heuristic analysis of query text. Analyses
// are memoized by query fingerprint.
type QueryAdvisor struct {
	memo *lru.Cache[uint64, *Advice]
}

var nonDeterministicFuncs = []string{
	"NOW(",
	"RANDOM(",
	"RAND(",
	"CURRENT_TIMESTAMP",
	"CURRENT_DATE",
	"CURRENT_TIME",
	"UUID(",
	"GEN_RANDOM_UUID(",
}

var joinPattern = regexp.MustCompile(`\bJOIN\b`)

// NewQueryAdvisor creates an advisor with a bounded memo.
func NewQueryAdvisor(memoSize int) *QueryAdvisor {
	if memoSize <= 0 {
		memoSize = 512
	}
	memo, _ := lru.New[uint64, *Advice](memoSize)
	return &QueryAdvisor{memo: memo}
}

func fingerprint(query string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(query)) //nolint:errcheck
	return h.Sum64()
}

// Analyze inspects the query text and returns suggestions, a cost score
// and whether the result is safe to cache.
func (a *QueryAdvisor) Analyze(query string) *Advice {
	fp := fingerprint(query)
	if cached, ok := a.memo.Get(fp); ok {
		return cached
	}

	upper := strings.ToUpper(query)
	isSelect := strings.HasPrefix(strings.TrimSpace(upper), "SELECT")

	advice := &Advice{EstimatedCost: 1}

	if strings.Contains(upper, "SELECT *") {
		advice.Suggestions = append(advice.Suggestions,
			"avoid SELECT *; list the columns you need")
		advice.EstimatedCost += 2
	}

	if isSelect && !strings.Contains(upper, "LIMIT") {
		advice.Suggestions = append(advice.Suggestions,
			"add a LIMIT clause to bound the result set")
		advice.EstimatedCost += 2
	}

	if joins := len(joinPattern.FindAllStringIndex(upper, -1)); joins > 0 {
		advice.Suggestions = append(advice.Suggestions,
			"ensure joined columns are indexed")
		advice.EstimatedCost += float64(joins) * 3
	}

	if strings.Contains(upper, "ORDER BY") {
		advice.Suggestions = append(advice.Suggestions,
			"ensure ORDER BY columns are indexed to avoid a sort")
		advice.EstimatedCost += 2
	}

	if strings.Contains(upper, "WHERE") {
		advice.Suggestions = append(advice.Suggestions,
			"ensure WHERE columns are indexed")
		advice.EstimatedCost++
	}

	if isSelect && isDeterministic(upper) {
		advice.CacheRecommendation = true
	}

	a.memo.Add(fp, advice)
	return advice
}

func isDeterministic(upperQuery string) bool {
	for _, fn := range nonDeterministicFuncs {
		if strings.Contains(upperQuery, fn) {
			return false
		}
	}
	return true
}
