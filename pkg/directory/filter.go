package directory

import (
	"regexp"
	"strings"
)

// The users container is the only place where a filter can be narrowed
// to a single upstream lookup; everything else lists. Provider lookups
// are expensive and rate-limited, so classification deliberately trades
// filter generality for call minimization: we only understand equality
// on uid, optionally as the first clause of a conjunction. The order of
// the checks below is load-bearing and must not be rearranged.

// FilterAction tells the engine how to satisfy a users-container search.
type FilterAction int

const (
	// FilterListAll fetches every user page from upstream.
	FilterListAll FilterAction = iota
	// FilterLookupOne fetches a single user by key.
	FilterLookupOne
	// FilterNoMatch short-circuits to an empty result, no upstream call.
	FilterNoMatch
)

func (a FilterAction) String() string {
	switch a {
	case FilterLookupOne:
		return "lookup-one"
	case FilterNoMatch:
		return "no-match"
	}
	return "list-all"
}

var (
	uidEqualityMatcher  = regexp.MustCompile(`(?i)^\(uid=([^)]+)\)$`)
	firstClauseMatcher  = regexp.MustCompile(`(?i)^\(&\s*\(uid=([^)*]+)\)`)
	unsupportedOperator = []string{">=", "<=", "~=", ":="}
)

// EvaluateUserFilter classifies a users-container filter. For
// FilterLookupOne the returned key is the uid literal, not yet
// domain-qualified.
func EvaluateUserFilter(filter string) (FilterAction, string) {
	filter = strings.TrimSpace(filter)

	// 1. No filter at all: browse everything.
	if filter == "" {
		return FilterListAll, ""
	}

	// 2. Anything with a comparison we cannot push upstream can never
	// match, even when a valid equality clause rides along.
	for _, op := range unsupportedOperator {
		if strings.Contains(filter, op) {
			return FilterNoMatch, ""
		}
	}

	// 3. A plain uid wildcard, anywhere outside a uid conjunction, is a
	// full listing.
	lowered := strings.ToLower(filter)
	if strings.Contains(lowered, "uid=*") && !strings.Contains(lowered, "&(uid=") {
		return FilterListAll, ""
	}

	// 4. A single equality clause on uid keys one lookup. A value with a
	// wildcard anywhere in it is a substring match we cannot push
	// upstream as a lookup; list and let the protocol layer narrow it.
	if m := uidEqualityMatcher.FindStringSubmatch(filter); m != nil {
		if strings.Contains(m[1], "*") {
			return FilterListAll, ""
		}
		return FilterLookupOne, m[1]
	}

	// 5. A conjunction whose first clause keys on uid behaves like the
	// single equality.
	if m := firstClauseMatcher.FindStringSubmatch(filter); m != nil {
		return FilterLookupOne, m[1]
	}

	// Everything else is too broad to narrow: list and let the protocol
	// layer filter.
	return FilterListAll, ""
}
