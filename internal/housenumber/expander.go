package housenumber

import (
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// MaxRangeTokens caps how many tokens a single range may expand to, so
// malformed input like "1-999999" cannot blow up memory. Larger ranges are
// truncated, never rejected.
const MaxRangeTokens = 50

// Set holds the atomic tokens of an expanded house number expression.
type Set map[string]struct{}

// Contains reports whether token is in the set.
func (s Set) Contains(token string) bool {
	_, ok := s[token]
	return ok
}

// Intersects reports whether the two sets share at least one token.
func (s Set) Intersects(other Set) bool {
	small, large := s, other
	if len(other) < len(s) {
		small, large = other, s
	}
	for token := range small {
		if _, ok := large[token]; ok {
			return true
		}
	}
	return false
}

// Sorted returns the tokens in deterministic order, numeric tokens first in
// ascending value, remaining tokens lexicographically.
func (s Set) Sorted() []string {
	tokens := make([]string, 0, len(s))
	for token := range s {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		ni, iErr := strconv.Atoi(tokens[i])
		nj, jErr := strconv.Atoi(tokens[j])
		switch {
		case iErr == nil && jErr == nil:
			return ni < nj
		case iErr == nil:
			return true
		case jErr == nil:
			return false
		default:
			return tokens[i] < tokens[j]
		}
	})
	return tokens
}

// Expand turns a house number expression like "1", "1,2", "1-3" or "1,3-5"
// into the set of its atomic tokens. Parts that do not form a valid numeric
// range pass through verbatim as single tokens, so malformed input degrades
// to literal matching instead of failing. The result is deduplicated;
// overlapping ranges like "1-5,3-7" produce each number once.
func Expand(expr string) Set {
	out := make(Set)
	if strings.TrimSpace(expr) == "" {
		return out
	}

	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			if start, end, ok := parseRange(part); ok {
				// Compared without the +1 so a span reaching the top of
				// the int range cannot overflow past the cap.
				if end-start >= MaxRangeTokens {
					log.WithFields(log.Fields{
						"part":  part,
						"limit": MaxRangeTokens,
					}).Warn("house number range too large, truncating")
					end = start + MaxRangeTokens - 1
				}
				for n := start; ; n++ {
					out[strconv.Itoa(n)] = struct{}{}
					// Break before the increment so end at MaxInt cannot
					// wrap n back around.
					if n == end {
						break
					}
				}
				continue
			}
		}

		out[part] = struct{}{}
	}

	return out
}

// parseRange splits a part like "1-3" into its bounds. It only succeeds for
// exactly two non-negative integers with start <= end; anything else stays
// an opaque token.
func parseRange(part string) (start, end int, ok bool) {
	pieces := strings.Split(part, "-")
	if len(pieces) != 2 {
		return 0, 0, false
	}

	start, err := strconv.Atoi(strings.TrimSpace(pieces[0]))
	if err != nil || start < 0 {
		return 0, 0, false
	}
	end, err = strconv.Atoi(strings.TrimSpace(pieces[1]))
	if err != nil || end < 0 || start > end {
		return 0, 0, false
	}

	return start, end, true
}
