package metaquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/termmeta/pkg/types"
)

var termTarget = Target{
	MetaTable:       "wp_termmeta",
	PrimaryTable:    "tt",
	PrimaryIDColumn: "term_id",
	ObjectColumn:    "term_id",
}

const firstJoin = " INNER JOIN wp_termmeta ON ( tt.term_id = wp_termmeta.term_id )"

func TestQuerySQL(t *testing.T) {
	tests := []struct {
		name      string
		query     *types.MetaQuery
		join      string
		joinArgs  []any
		where     string
		whereArgs []any
	}{
		{
			name:      "single equality clause",
			query:     &types.MetaQuery{Clauses: []types.MetaClause{{Key: "color", Value: "red"}}},
			join:      firstJoin,
			where:     " AND ( ( wp_termmeta.meta_key = ? AND wp_termmeta.meta_value = ? ) )",
			whereArgs: []any{"color", "red"},
		},
		{
			name: "AND clauses get their own aliases",
			query: &types.MetaQuery{Clauses: []types.MetaClause{
				{Key: "color", Value: "red"},
				{Key: "weight", Value: 10, Compare: ">", Type: "numeric"},
			}},
			join:      firstJoin + " INNER JOIN wp_termmeta AS mt1 ON ( tt.term_id = mt1.term_id )",
			where:     " AND ( ( wp_termmeta.meta_key = ? AND wp_termmeta.meta_value = ? ) AND ( mt1.meta_key = ? AND CAST(mt1.meta_value AS NUMERIC) > ? ) )",
			whereArgs: []any{"color", "red", "weight", 10},
		},
		{
			name: "OR siblings share one join",
			query: &types.MetaQuery{Relation: "or", Clauses: []types.MetaClause{
				{Key: "color", Value: "red"},
				{Key: "color", Value: "blue"},
			}},
			join:      firstJoin,
			where:     " AND ( ( wp_termmeta.meta_key = ? AND wp_termmeta.meta_value = ? ) OR ( wp_termmeta.meta_key = ? AND wp_termmeta.meta_value = ? ) )",
			whereArgs: []any{"color", "red", "color", "blue"},
		},
		{
			name:     "NOT EXISTS uses a left join keyed on meta_key",
			query:    &types.MetaQuery{Clauses: []types.MetaClause{{Key: "hidden", Compare: "NOT EXISTS"}}},
			join:     " LEFT JOIN wp_termmeta ON ( tt.term_id = wp_termmeta.term_id AND wp_termmeta.meta_key = ? )",
			joinArgs: []any{"hidden"},
			where:    " AND ( wp_termmeta.term_id IS NULL )",
		},
		{
			name: "a LEFT JOIN widens sibling joins",
			query: &types.MetaQuery{Relation: "OR", Clauses: []types.MetaClause{
				{Key: "color", Compare: "NOT EXISTS"},
				{Key: "weight", Value: "8"},
			}},
			join: " LEFT JOIN wp_termmeta ON ( tt.term_id = wp_termmeta.term_id AND wp_termmeta.meta_key = ? )" +
				" LEFT JOIN wp_termmeta AS mt1 ON ( tt.term_id = mt1.term_id )",
			joinArgs:  []any{"color"},
			where:     " AND ( wp_termmeta.term_id IS NULL OR ( mt1.meta_key = ? AND mt1.meta_value = ? ) )",
			whereArgs: []any{"weight", "8"},
		},
		{
			name:      "EXISTS only checks the key",
			query:     &types.MetaQuery{Clauses: []types.MetaClause{{Key: "featured", Compare: "exists"}}},
			join:      firstJoin,
			where:     " AND ( wp_termmeta.meta_key = ? )",
			whereArgs: []any{"featured"},
		},
		{
			name:      "slice value defaults to IN",
			query:     &types.MetaQuery{Clauses: []types.MetaClause{{Key: "color", Value: []string{"red", "blue"}}}},
			join:      firstJoin,
			where:     " AND ( ( wp_termmeta.meta_key = ? AND wp_termmeta.meta_value IN (?, ?) ) )",
			whereArgs: []any{"color", "red", "blue"},
		},
		{
			name:      "comma separated string feeds NOT IN",
			query:     &types.MetaQuery{Clauses: []types.MetaClause{{Key: "color", Value: "red, green", Compare: "NOT IN"}}},
			join:      firstJoin,
			where:     " AND ( ( wp_termmeta.meta_key = ? AND wp_termmeta.meta_value NOT IN (?, ?) ) )",
			whereArgs: []any{"color", "red", "green"},
		},
		{
			name:      "BETWEEN with two bounds and signed cast",
			query:     &types.MetaQuery{Clauses: []types.MetaClause{{Key: "rank", Value: []int{1, 5}, Compare: "BETWEEN", Type: "SIGNED"}}},
			join:      firstJoin,
			where:     " AND ( ( wp_termmeta.meta_key = ? AND CAST(wp_termmeta.meta_value AS BIGINT) BETWEEN ? AND ? ) )",
			whereArgs: []any{"rank", 1, 5},
		},
		{
			name:      "LIKE escapes wildcards",
			query:     &types.MetaQuery{Clauses: []types.MetaClause{{Key: "label", Value: "50%_off", Compare: "LIKE"}}},
			join:      firstJoin,
			where:     " AND ( ( wp_termmeta.meta_key = ? AND wp_termmeta.meta_value LIKE ? ESCAPE '\\' ) )",
			whereArgs: []any{"label", `%50\%\_off%`},
		},
		{
			name:      "key only clause matches any value",
			query:     &types.MetaQuery{Clauses: []types.MetaClause{{Key: "color"}}},
			join:      firstJoin,
			where:     " AND ( ( wp_termmeta.meta_key = ? ) )",
			whereArgs: []any{"color"},
		},
		{
			name:      "unknown operator and type fall back",
			query:     &types.MetaQuery{Clauses: []types.MetaClause{{Key: "color", Value: "red", Compare: "~=", Type: "BLOB"}}},
			join:      firstJoin,
			where:     " AND ( ( wp_termmeta.meta_key = ? AND wp_termmeta.meta_value = ? ) )",
			whereArgs: []any{"color", "red"},
		},
		{
			name: "nested OR group",
			query: &types.MetaQuery{
				Clauses: []types.MetaClause{{Key: "color", Value: "red"}},
				Groups: []types.MetaQuery{{
					Relation: "OR",
					Clauses: []types.MetaClause{
						{Key: "size", Value: "s"},
						{Key: "size", Value: "m"},
					},
				}},
			},
			join:      firstJoin + " INNER JOIN wp_termmeta AS mt1 ON ( tt.term_id = mt1.term_id )",
			where:     " AND ( ( wp_termmeta.meta_key = ? AND wp_termmeta.meta_value = ? ) AND ( ( mt1.meta_key = ? AND mt1.meta_value = ? ) OR ( mt1.meta_key = ? AND mt1.meta_value = ? ) ) )",
			whereArgs: []any{"color", "red", "size", "s", "size", "m"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(tt.query)
			require.True(t, q.HasClauses())

			got := q.SQL(termTarget)
			assert.Equal(t, tt.join, got.Join)
			assert.Equal(t, tt.joinArgs, got.JoinArgs)
			assert.Equal(t, tt.where, got.Where)
			assert.Equal(t, tt.whereArgs, got.WhereArgs)
		})
	}
}

func TestQueryMalformedInputRendersNothing(t *testing.T) {
	tests := []struct {
		name  string
		query *types.MetaQuery
	}{
		{name: "nil query", query: nil},
		{name: "empty query", query: &types.MetaQuery{}},
		{name: "clause without key or value", query: &types.MetaQuery{Clauses: []types.MetaClause{{Compare: "="}}}},
		{name: "BETWEEN with three bounds", query: &types.MetaQuery{Clauses: []types.MetaClause{{Key: "k", Value: []int{1, 2, 3}, Compare: "BETWEEN"}}}},
		{name: "IN with empty list", query: &types.MetaQuery{Clauses: []types.MetaClause{{Key: "k", Value: []string{}, Compare: "IN"}}}},
		{name: "EXISTS without key", query: &types.MetaQuery{Clauses: []types.MetaClause{{Value: "v", Compare: "EXISTS"}}}},
		{name: "slice with scalar operator", query: &types.MetaQuery{Clauses: []types.MetaClause{{Key: "k", Value: []string{"a"}, Compare: ">"}}}},
		{name: "map value", query: &types.MetaQuery{Clauses: []types.MetaClause{{Key: "k", Value: map[string]any{"a": 1}}}}},
		{name: "map inside IN list", query: &types.MetaQuery{Clauses: []types.MetaClause{{Key: "k", Value: []any{"a", map[string]any{"b": 2}}, Compare: "IN"}}}},
		{name: "nested list", query: &types.MetaQuery{Clauses: []types.MetaClause{{Key: "k", Value: []any{[]any{1, 2}}, Compare: "IN"}}}},
		{name: "nil inside BETWEEN bounds", query: &types.MetaQuery{Clauses: []types.MetaClause{{Key: "k", Value: []any{1, nil}, Compare: "BETWEEN"}}}},
		{name: "only empty groups", query: &types.MetaQuery{Groups: []types.MetaQuery{{}, {Relation: "OR"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(tt.query)
			assert.False(t, q.HasClauses())
			assert.Equal(t, Fragments{}, q.SQL(termTarget))
		})
	}
}

func TestFromListingArgs(t *testing.T) {
	t.Run("no shorthand returns the meta query as is", func(t *testing.T) {
		mq := &types.MetaQuery{Clauses: []types.MetaClause{{Key: "a", Value: "1"}}}
		assert.Same(t, mq, FromListingArgs(types.ListingArgs{MetaQuery: mq}))
	})

	t.Run("shorthand alone becomes a single clause", func(t *testing.T) {
		got := FromListingArgs(types.ListingArgs{MetaKey: "color", MetaValue: "red", MetaCompare: "!="})
		require.NotNil(t, got)
		assert.Equal(t, []types.MetaClause{{Key: "color", Value: "red", Compare: "!="}}, got.Clauses)
		assert.Empty(t, got.Groups)
	})

	t.Run("shorthand is ANDed ahead of the meta query", func(t *testing.T) {
		mq := &types.MetaQuery{Relation: "OR", Clauses: []types.MetaClause{{Key: "a"}, {Key: "b"}}}
		got := FromListingArgs(types.ListingArgs{MetaKey: "color", MetaQuery: mq})
		require.NotNil(t, got)
		assert.Equal(t, types.RelationAnd, got.Relation)
		assert.Equal(t, []types.MetaClause{{Key: "color"}}, got.Clauses)
		require.Len(t, got.Groups, 1)
		assert.Equal(t, *mq, got.Groups[0])
	})
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\%b\_c\\d`, EscapeLike(`a%b_c\d`))
	assert.Equal(t, "plain", EscapeLike("plain"))
}
