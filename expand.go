package opts

import (
	"maps"
	"slices"
)

// Expand validates a flat specification against a backend option table and
// partitions each identifier's keywords into option groups. Every group is
// present in the result, possibly empty. A keyword goes to the first group,
// in name order, that accepts it.
//
// Identifiers and keywords are visited in sorted order so the reported error
// is stable for identical input.
func Expand(spec FlatSpecification, backend string, table OptionTable) (Expanded, error) {
	expanded := make(Expanded, len(spec))
	for _, key := range slices.Sorted(maps.Keys(spec)) {
		typ := typeOf(key)
		groups, ok := table[typ]
		if !ok {
			return nil, &UnknownTypeError{Type: typ, Backend: backend}
		}

		grouped := NewGrouped()
		keywords := spec[key]
		for _, keyword := range keywords.Names() {
			group, ok := groups.GroupOf(keyword)
			if !ok {
				valid := groups.Keywords()
				return nil, &InvalidOptionError{
					Keyword:     keyword,
					Identifier:  key,
					Type:        typ,
					Backend:     backend,
					Valid:       valid,
					Suggestions: DefaultMatcher().Suggestions(keyword, valid),
				}
			}
			grouped[group][keyword] = keywords[keyword]
		}
		expanded[key] = grouped
	}
	return expanded, nil
}
