// Package projection implements the projection helper from SPEC_FULL.md
// §4.5: given an index definition and an item's full attribute map, reduce
// it to what that index's ProjectionType actually carries.
package projection

import (
	"pretender/internal/attrvalue"
	"pretender/internal/core"
)

// Apply returns the subset of item visible under idx's projection, given
// the base table's key attribute names (always included under KEYS_ONLY
// and INCLUDE, alongside the index's own key attributes). Attributes
// absent from item are simply absent from the result.
func Apply(meta *core.TableMetadata, idx *core.GlobalSecondaryIndex, item attrvalue.Map) attrvalue.Map {
	if idx == nil || idx.ProjectionType == core.ProjectionAll {
		return item.Clone()
	}

	out := attrvalue.Map{}
	include := func(attr string) {
		if v, ok := item[attr]; ok {
			out[attr] = v.Clone()
		}
	}

	include(meta.HashKeyAttribute)
	if meta.HasSortKey() {
		include(meta.SortKeyAttribute)
	}
	include(idx.HashKeyAttribute)
	if idx.SortKeyAttribute != "" {
		include(idx.SortKeyAttribute)
	}

	if idx.ProjectionType == core.ProjectionInclude {
		for _, attr := range idx.NonKeyAttributes {
			include(attr)
		}
	}

	return out
}
