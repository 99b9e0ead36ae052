package types

// MetaQuery is a predicate tree over metadata rows. Clauses and Groups are
// combined with Relation, which is AND unless it is "OR".
type MetaQuery struct {
	Relation string       `json:"relation,omitempty" yaml:"relation,omitempty"`
	Clauses  []MetaClause `json:"clauses,omitempty" yaml:"clauses,omitempty"`
	Groups   []MetaQuery  `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// MetaClause is a single predicate. A clause needs a Key or a Value to be
// considered; Value is nil when unset. Slice values feed IN and BETWEEN.
type MetaClause struct {
	Key     string `json:"key,omitempty" yaml:"key,omitempty"`
	Value   any    `json:"value,omitempty" yaml:"value,omitempty"`
	Compare string `json:"compare,omitempty" yaml:"compare,omitempty"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Relations.
const (
	RelationAnd = "AND"
	RelationOr  = "OR"
)

// Compare operators.
const (
	CompareEqual        = "="
	CompareNotEqual     = "!="
	CompareGreater      = ">"
	CompareGreaterEqual = ">="
	CompareLess         = "<"
	CompareLessEqual    = "<="
	CompareLike         = "LIKE"
	CompareNotLike      = "NOT LIKE"
	CompareIn           = "IN"
	CompareNotIn        = "NOT IN"
	CompareBetween      = "BETWEEN"
	CompareNotBetween   = "NOT BETWEEN"
	CompareExists       = "EXISTS"
	CompareNotExists    = "NOT EXISTS"
)

// Value types for casting meta_value before comparison.
const (
	MetaTypeChar     = "CHAR"
	MetaTypeNumeric  = "NUMERIC"
	MetaTypeDecimal  = "DECIMAL"
	MetaTypeSigned   = "SIGNED"
	MetaTypeUnsigned = "UNSIGNED"
	MetaTypeBinary   = "BINARY"
	MetaTypeDate     = "DATE"
	MetaTypeDatetime = "DATETIME"
	MetaTypeTime     = "TIME"
)

// IsEmpty reports whether the query has nothing to evaluate. A nil query is
// empty.
func (q *MetaQuery) IsEmpty() bool {
	return q == nil || (len(q.Clauses) == 0 && len(q.Groups) == 0)
}
