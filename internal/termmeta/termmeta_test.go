package termmeta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/termmeta/internal/store"
	"github.com/mesh-intelligence/termmeta/pkg/types"
)

// setup attaches a SQLite backend in a temp dir and registers a component.
// install runs single-site activation on the main site.
func setup(t *testing.T, logger *zap.Logger, install bool, configure ...func(*types.Config)) (*store.Backend, *Component) {
	t.Helper()
	cfg := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	for _, f := range configure {
		f(&cfg)
	}

	b := store.NewBackend(logger)
	require.NoError(t, b.Attach(cfg))
	t.Cleanup(func() { b.Detach() })

	c := New(b, logger)
	require.NoError(t, b.Register(c))
	if install {
		require.NoError(t, b.Activate(context.Background(), Name, false))
	}
	return b, c
}

func countRows(t *testing.T, b *store.Backend, table string, termID int64) int {
	t.Helper()
	db, err := b.DB()
	require.NoError(t, err)
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE term_id = ?", termID).Scan(&n))
	return n
}

func TestComponent_RegisterPatchesHandle(t *testing.T) {
	b, c := setup(t, nil, false)

	table, ok := b.Handle().Table(TableName)
	require.True(t, ok)
	assert.Equal(t, "wp_termmeta", table)
	assert.Equal(t, "wp_termmeta", c.Table())

	assert.ErrorIs(t, b.Register(New(b, nil)), types.ErrAlreadyRegistered)
}

func TestAccessors_AddKeepsEveryValue(t *testing.T) {
	ctx := context.Background()
	_, c := setup(t, nil, true)

	ok, err := c.AddTermMeta(ctx, 7, "color", "red", false)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.AddTermMeta(ctx, 7, "color", "blue", false)
	require.NoError(t, err)
	assert.True(t, ok)

	values, err := c.GetTermMeta(ctx, 7, "color")
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "blue"}, values)
}

func TestAccessors_UniqueAddRefusesSecond(t *testing.T) {
	ctx := context.Background()
	_, c := setup(t, nil, true)

	ok, err := c.AddTermMeta(ctx, 7, "color", "red", true)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.AddTermMeta(ctx, 7, "color", "blue", true)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := c.GetTermMetaSingle(ctx, 7, "color")
	require.NoError(t, err)
	assert.Equal(t, "red", v)

	v, err = c.GetTermMetaSingle(ctx, 7, "missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestAccessors_UpdateInPlace(t *testing.T) {
	ctx := context.Background()
	b, c := setup(t, nil, true)

	ok, err := c.UpdateTermMeta(ctx, 3, "color", "red", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, countRows(t, b, "wp_termmeta", 3))

	rows, err := c.TermMetaRows(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	metaID := rows[0].MetaID

	ok, err = c.UpdateTermMeta(ctx, 3, "color", "blue", "")
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err = c.TermMetaRows(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1, "row count unchanged")
	assert.Equal(t, types.TermMeta{MetaID: metaID, TermID: 3, Key: "color", Value: "blue"}, rows[0])

	ok, err = c.UpdateTermMeta(ctx, 3, "color", "blue", "")
	require.NoError(t, err)
	assert.False(t, ok, "same value is no change")
}

func TestAccessors_Delete(t *testing.T) {
	ctx := context.Background()
	_, c := setup(t, nil, true)

	for _, v := range []string{"red", "blue", "red"} {
		_, err := c.AddTermMeta(ctx, 4, "color", v, false)
		require.NoError(t, err)
	}
	_, err := c.AddTermMeta(ctx, 5, "color", "red", false)
	require.NoError(t, err)

	ok, err := c.DeleteTermMeta(ctx, 4, "color", "red")
	require.NoError(t, err)
	assert.True(t, ok)
	values, _ := c.GetTermMeta(ctx, 4, "color")
	assert.Equal(t, []string{"blue"}, values)

	ok, err = c.DeleteTermMeta(ctx, 4, "color", "")
	require.NoError(t, err)
	assert.True(t, ok)
	values, _ = c.GetTermMeta(ctx, 4, "color")
	assert.Empty(t, values)

	ok, err = c.DeleteTermMeta(ctx, 4, "color", "")
	require.NoError(t, err)
	assert.False(t, ok)

	values, _ = c.GetTermMeta(ctx, 5, "color")
	assert.Equal(t, []string{"red"}, values, "other terms are untouched")
}

func TestAccessors_DeleteByKey(t *testing.T) {
	ctx := context.Background()
	_, c := setup(t, nil, true)

	for id := int64(1); id <= 3; id++ {
		_, err := c.AddTermMeta(ctx, id, "featured", "yes", false)
		require.NoError(t, err)
		_, err = c.AddTermMeta(ctx, id, "color", "red", false)
		require.NoError(t, err)
	}

	ok, err := c.DeleteTermMetaByKey(ctx, "featured")
	require.NoError(t, err)
	assert.True(t, ok)

	for id := int64(1); id <= 3; id++ {
		all, err := c.AllTermMeta(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, map[string][]string{"color": {"red"}}, all)
	}
}

func TestAccessors_Validation(t *testing.T) {
	ctx := context.Background()
	_, c := setup(t, nil, true)

	_, err := c.AddTermMeta(ctx, 0, "color", "red", false)
	assert.ErrorIs(t, err, types.ErrInvalidObjectID)
	_, err = c.AddTermMeta(ctx, 1, "", "red", false)
	assert.ErrorIs(t, err, types.ErrInvalidKey)
	_, err = c.DeleteTermMetaByKey(ctx, "")
	assert.ErrorIs(t, err, types.ErrInvalidKey)
}

func TestAccessors_FollowActiveSite(t *testing.T) {
	ctx := context.Background()
	b, c := setup(t, nil, true)

	require.NoError(t, b.Activate(ctx, Name, true))
	siteID, err := b.CreateSite(ctx, "two.example.org", "/")
	require.NoError(t, err)

	_, err = c.AddTermMeta(ctx, 1, "color", "main", false)
	require.NoError(t, err)

	require.NoError(t, b.SwitchToSite(ctx, siteID))
	assert.Equal(t, "wp_2_termmeta", c.Table())
	_, err = c.AddTermMeta(ctx, 1, "color", "second", false)
	require.NoError(t, err)
	values, err := c.GetTermMeta(ctx, 1, "color")
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, values)
	require.NoError(t, b.RestoreCurrentSite())

	values, err = c.GetTermMeta(ctx, 1, "color")
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, values)
}
