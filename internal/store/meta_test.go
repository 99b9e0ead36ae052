package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/termmeta/pkg/types"
)

const termType = types.ObjectTypeTerm

func TestMetadata_AddAndGet(t *testing.T) {
	ctx := context.Background()
	b := attachedBackend(t)
	h := withMetaTable(t, b)

	id1, err := b.AddMetadata(ctx, h, termType, 5, "color", "red", false)
	require.NoError(t, err)
	id2, err := b.AddMetadata(ctx, h, termType, 5, "color", "blue", false)
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	values, err := b.GetMetadata(ctx, h, termType, 5, "color")
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "blue"}, values)

	values, err = b.GetMetadata(ctx, h, termType, 5, "missing")
	require.NoError(t, err)
	assert.NotNil(t, values)
	assert.Empty(t, values)

	id, err := b.AddMetadata(ctx, h, termType, 5, "color", "green", true)
	require.NoError(t, err)
	assert.Zero(t, id, "unique add refuses an existing key")

	id, err = b.AddMetadata(ctx, h, termType, 5, "size", "xl", true)
	require.NoError(t, err)
	assert.NotZero(t, id)

	all, err := b.AllMetadata(ctx, h, termType, 5)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"color": {"red", "blue"}, "size": {"xl"}}, all)
}

func TestMetadata_Validation(t *testing.T) {
	ctx := context.Background()
	b := attachedBackend(t)
	h := withMetaTable(t, b)

	_, err := b.AddMetadata(ctx, h, termType, 0, "k", "v", false)
	assert.ErrorIs(t, err, types.ErrInvalidObjectID)
	_, err = b.AddMetadata(ctx, h, termType, 1, "", "v", false)
	assert.ErrorIs(t, err, types.ErrInvalidKey)
	_, err = b.AddMetadata(ctx, h, "", 1, "k", "v", false)
	assert.ErrorIs(t, err, types.ErrInvalidObjectType)
	_, err = b.AddMetadata(ctx, h, "post", 1, "k", "v", false)
	assert.ErrorIs(t, err, types.ErrMetaTableMissing)

	_, err = b.GetMetadataByMID(ctx, h, termType, 0)
	assert.ErrorIs(t, err, types.ErrInvalidMetaID)
	_, err = b.GetMetadataByMID(ctx, h, termType, 999)
	assert.ErrorIs(t, err, types.ErrMetaNotFound)
}

func TestMetadata_Update(t *testing.T) {
	ctx := context.Background()
	b := attachedBackend(t)
	h := withMetaTable(t, b)

	tests := []struct {
		name   string
		seed   []string
		value  string
		prev   string
		want   bool
		values []string
	}{
		{"absent key is added", nil, "red", "", true, []string{"red"}},
		{"absent key with prev is refused", nil, "red", "blue", false, []string{}},
		{"single identical value is refused", []string{"red"}, "red", "", false, []string{"red"}},
		{"all rows are overwritten", []string{"red", "blue"}, "green", "", true, []string{"green", "green"}},
		{"only rows holding prev change", []string{"red", "blue"}, "green", "blue", true, []string{"red", "green"}},
		{"unmatched prev is refused", []string{"red"}, "green", "blue", false, []string{"red"}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			termID := int64(100 + i)
			for _, v := range tt.seed {
				_, err := b.AddMetadata(ctx, h, termType, termID, "color", v, false)
				require.NoError(t, err)
			}

			ok, err := b.UpdateMetadata(ctx, h, termType, termID, "color", tt.value, tt.prev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			values, err := b.GetMetadata(ctx, h, termType, termID, "color")
			require.NoError(t, err)
			assert.Equal(t, tt.values, values)
		})
	}
}

func TestMetadata_Delete(t *testing.T) {
	ctx := context.Background()
	b := attachedBackend(t)
	h := withMetaTable(t, b)

	for _, row := range []struct {
		id    int64
		key   string
		value string
	}{
		{1, "color", "red"},
		{1, "color", "blue"},
		{2, "color", "red"},
		{3, "color", "red"},
		{3, "size", "s"},
	} {
		_, err := b.AddMetadata(ctx, h, termType, row.id, row.key, row.value, false)
		require.NoError(t, err)
	}

	ok, err := b.DeleteMetadata(ctx, h, termType, 1, "color", "blue", false)
	require.NoError(t, err)
	assert.True(t, ok)
	values, _ := b.GetMetadata(ctx, h, termType, 1, "color")
	assert.Equal(t, []string{"red"}, values)

	ok, err = b.DeleteMetadata(ctx, h, termType, 1, "color", "purple", false)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.DeleteMetadata(ctx, h, termType, 999, "color", "", true)
	require.NoError(t, err)
	assert.True(t, ok, "delete all ignores the object id")

	for _, id := range []int64{1, 2, 3} {
		values, err := b.GetMetadata(ctx, h, termType, id, "color")
		require.NoError(t, err)
		assert.Empty(t, values)
	}
	values, _ = b.GetMetadata(ctx, h, termType, 3, "size")
	assert.Equal(t, []string{"s"}, values)

	ok, err = b.DeleteMetadata(ctx, h, termType, 0, "color", "", true)
	require.NoError(t, err)
	assert.False(t, ok, "nothing left to delete")

	_, err = b.DeleteMetadata(ctx, h, termType, 0, "color", "", false)
	assert.ErrorIs(t, err, types.ErrInvalidObjectID)
}

func TestMetadata_ByMID(t *testing.T) {
	ctx := context.Background()
	b := attachedBackend(t)
	h := withMetaTable(t, b)

	metaID, err := b.AddMetadata(ctx, h, termType, 8, "color", "red", false)
	require.NoError(t, err)

	row, err := b.GetMetadataByMID(ctx, h, termType, metaID)
	require.NoError(t, err)
	assert.Equal(t, MetaRow{MetaID: metaID, ObjectID: 8, Key: "color", Value: "red"}, row)

	rows, err := b.MetaRows(ctx, h, termType, 8)
	require.NoError(t, err)
	assert.Equal(t, []MetaRow{row}, rows)

	ok, err := b.DeleteMetadataByMID(ctx, h, termType, metaID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.DeleteMetadataByMID(ctx, h, termType, metaID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMetadata_DeleteObject(t *testing.T) {
	ctx := context.Background()
	b := attachedBackend(t)
	h := withMetaTable(t, b)

	for _, k := range []string{"a", "b", "c"} {
		_, err := b.AddMetadata(ctx, h, termType, 4, k, "v", false)
		require.NoError(t, err)
	}
	_, err := b.AddMetadata(ctx, h, termType, 5, "a", "v", false)
	require.NoError(t, err)

	n, err := b.DeleteObjectMetadata(ctx, h, termType, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := b.AllMetadata(ctx, h, termType, 4)
	require.NoError(t, err)
	assert.Empty(t, all)
	all, err = b.AllMetadata(ctx, h, termType, 5)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMetadata_RedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Cache.RedisAddr = mr.Addr()
	cfg.Cache.TTL = time.Minute

	b := NewBackend(nil)
	require.NoError(t, b.Attach(cfg))
	defer b.Detach()
	h := withMetaTable(t, b)

	_, err := b.AddMetadata(ctx, h, termType, 3, "color", "red", false)
	require.NoError(t, err)

	values, err := b.GetMetadata(ctx, h, termType, 3, "color")
	require.NoError(t, err)
	assert.Equal(t, []string{"red"}, values)
	assert.True(t, mr.Exists("termmeta:wp_term_meta:3"), "read populates the cache")

	// a write behind the cache's back is not seen until invalidation
	db, err := b.DB()
	require.NoError(t, err)
	_, err = db.Exec("UPDATE wp_termmeta SET meta_value = 'stale' WHERE term_id = 3")
	require.NoError(t, err)
	values, _ = b.GetMetadata(ctx, h, termType, 3, "color")
	assert.Equal(t, []string{"red"}, values)

	ok, err := b.UpdateMetadata(ctx, h, termType, 3, "color", "blue", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("termmeta:wp_term_meta:3"), "write invalidates the entry")

	values, _ = b.GetMetadata(ctx, h, termType, 3, "color")
	assert.Equal(t, []string{"blue"}, values)
}
