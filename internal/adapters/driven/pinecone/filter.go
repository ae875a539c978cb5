package pinecone

import (
	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// translateFilter converts the domain filter expression into Pinecone's
// metadata filter syntax. Multiple conditions are combined with $and;
// repeated conditions on one field therefore all apply.
func translateFilter(f *domain.Filter) map[string]any {
	if f.Empty() {
		return nil
	}

	clauses := make([]map[string]any, 0, len(f.Conditions))
	for _, cond := range f.Conditions {
		if clause := translateCondition(cond); clause != nil {
			clauses = append(clauses, clause)
		}
	}

	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return map[string]any{"$and": clauses}
	}
}

func translateCondition(cond domain.Condition) map[string]any {
	switch c := cond.(type) {
	case domain.Equals:
		return map[string]any{c.Key: map[string]any{"$eq": c.Value}}
	case domain.In:
		if len(c.Values) == 0 {
			return nil
		}
		return map[string]any{c.Key: map[string]any{"$in": c.Values}}
	case domain.Range:
		bounds := map[string]any{}
		if c.GTE != nil {
			bounds["$gte"] = c.GTE
		}
		if c.LTE != nil {
			bounds["$lte"] = c.LTE
		}
		if len(bounds) == 0 {
			return nil
		}
		return map[string]any{c.Key: bounds}
	default:
		return nil
	}
}
