package domain

// Filter is a small typed metadata-filter expression. Adapters translate it
// to their store's native syntax; services build it without knowing that
// syntax. The condition set is closed: equality, set membership, and range.
type Filter struct {
	Conditions []Condition `json:"conditions,omitempty"`
}

// Condition is one predicate on a metadata field.
type Condition interface {
	// Field returns the metadata field the condition applies to.
	Field() string

	isCondition()
}

// Equals matches records whose field equals Value.
type Equals struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// In matches records whose field is any of Values.
type In struct {
	Key    string `json:"key"`
	Values []any  `json:"values"`
}

// Range matches records whose numeric field is within [GTE, LTE].
// Either bound may be nil for a half-open range.
type Range struct {
	Key string `json:"key"`
	GTE any    `json:"gte,omitempty"`
	LTE any    `json:"lte,omitempty"`
}

func (c Equals) Field() string { return c.Key }
func (c In) Field() string     { return c.Key }
func (c Range) Field() string  { return c.Key }

func (Equals) isCondition() {}
func (In) isCondition()     {}
func (Range) isCondition()  {}

// NewFilter builds a filter from conditions, dropping nils.
func NewFilter(conds ...Condition) *Filter {
	f := &Filter{}
	for _, c := range conds {
		if c != nil {
			f.Conditions = append(f.Conditions, c)
		}
	}
	return f
}

// Empty reports whether the filter has no conditions.
func (f *Filter) Empty() bool {
	return f == nil || len(f.Conditions) == 0
}

// Add appends a condition and returns the filter for chaining.
func (f *Filter) Add(c Condition) *Filter {
	if c != nil {
		f.Conditions = append(f.Conditions, c)
	}
	return f
}

// ByDocumentID is the filter the sync pipeline uses for delete-before-write.
func ByDocumentID(documentID string) *Filter {
	return NewFilter(Equals{Key: "document_id", Value: documentID})
}
