package router

import "strings"

// MediaType is a parsed "type/subtype" content-type or accept entry.
// Either half may be "*" to mean wildcard.
type MediaType struct {
	Type    string
	Subtype string
	// Q is the preference weight parsed from an Accept entry's "q"
	// parameter; it defaults to 1.0 and is only meaningful for
	// sorting an Accept list, not for content-type matching.
	Q float64
}

// ParseMediaType parses a single "type/subtype[;q=value][;...]" token.
// Returns the zero MediaType if s is empty or malformed.
func ParseMediaType(s string) (MediaType, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MediaType{}, false
	}

	mt := MediaType{Q: 1.0}
	parts := strings.Split(s, ";")
	slash := strings.IndexByte(parts[0], '/')
	if slash < 0 {
		return MediaType{}, false
	}
	mt.Type = strings.TrimSpace(parts[0][:slash])
	mt.Subtype = strings.TrimSpace(parts[0][slash+1:])
	if mt.Type == "" || mt.Subtype == "" {
		return MediaType{}, false
	}

	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "q=") {
			if q, ok := parseQValue(p[2:]); ok {
				mt.Q = q
			}
		}
	}
	return mt, true
}

func parseQValue(s string) (float64, bool) {
	// Accept "q" values are always of the form 0(.d{0,3})? or 1(.0{0,3})?;
	// a tiny hand-rolled parser avoids pulling in strconv.ParseFloat's
	// broader grammar for a value this constrained.
	if s == "" {
		return 0, false
	}
	neg := false
	whole := 0
	frac := 0.0
	scale := 1.0
	i := 0
	if s[i] == '0' {
		whole = 0
		i++
	} else if s[i] == '1' {
		whole = 1
		i++
	} else {
		return 0, false
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			scale /= 10
			frac += float64(s[i]-'0') * scale
			i++
		}
	}
	if i != len(s) {
		return 0, false
	}
	v := float64(whole) + frac
	if neg {
		v = -v
	}
	return v, true
}

// ParseAcceptList parses a comma-separated Accept header value into a
// list sorted by descending preference (q value), ties broken by
// declaration order (a stable sort).
func ParseAcceptList(s string) []MediaType {
	if s == "" {
		return nil
	}
	tokens := strings.Split(s, ",")
	out := make([]MediaType, 0, len(tokens))
	for _, t := range tokens {
		if mt, ok := ParseMediaType(t); ok {
			out = append(out, mt)
		}
	}
	stableSortByQDesc(out)
	return out
}

func stableSortByQDesc(list []MediaType) {
	// Insertion sort: accept lists are short (almost always < 10
	// entries) and this keeps the sort stable without importing
	// sort.SliceStable for such a small input.
	for i := 1; i < len(list); i++ {
		j := i
		for j > 0 && list[j-1].Q < list[j].Q {
			list[j-1], list[j] = list[j], list[j-1]
			j--
		}
	}
}

// IsWildcard reports whether mt is the fully-open "*/*" wildcard.
func (mt MediaType) IsWildcard() bool {
	return mt.Type == "*" && mt.Subtype == "*"
}

// BelongsTo reports whether mt matches pattern, honoring "*" in either
// half of pattern.
func (mt MediaType) BelongsTo(pattern MediaType) bool {
	if pattern.Type != "*" && pattern.Type != mt.Type {
		return false
	}
	if pattern.Subtype != "*" && pattern.Subtype != mt.Subtype {
		return false
	}
	return true
}

func (mt MediaType) String() string {
	if mt.Type == "" {
		return ""
	}
	return mt.Type + "/" + mt.Subtype
}
