package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/termmeta/pkg/types"
)

func tableExists(t *testing.T, b *Backend, table string) bool {
	t.Helper()
	db, err := b.DB()
	require.NoError(t, err)
	rows, err := db.Query(b.Dialect().TableExistsQuery(), table)
	require.NoError(t, err)
	defer rows.Close()
	return rows.Next()
}

func TestSitePrefix(t *testing.T) {
	assert.Equal(t, "wp_", SitePrefix("wp_", 1))
	assert.Equal(t, "wp_2_", SitePrefix("wp_", 2))
	assert.Equal(t, "x_17_", SitePrefix("x_", 17))
}

func TestBackend_CreateSite(t *testing.T) {
	ctx := context.Background()
	b := attachedBackend(t)
	r := &recorder{name: "recorder"}
	require.NoError(t, b.Register(r))

	siteID, err := b.CreateSite(ctx, "example.org", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), siteID)
	assert.Equal(t, []int64{2}, r.newSites)

	for _, table := range []string{"wp_2_options", "wp_2_terms", "wp_2_term_taxonomy"} {
		assert.True(t, tableExists(t, b, table), table)
	}

	site, err := b.GetSite(ctx, siteID)
	require.NoError(t, err)
	assert.Equal(t, "example.org", site.Domain)
	assert.Equal(t, "/", site.Path)
	assert.False(t, site.CreatedAt.IsZero())

	ids, err := b.SiteIDs(ctx, types.DefaultNetworkID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	_, err = b.GetSite(ctx, 99)
	assert.ErrorIs(t, err, types.ErrSiteNotFound)
}

func TestBackend_SwitchAndRestore(t *testing.T) {
	ctx := context.Background()
	b := attachedBackend(t)
	r := &recorder{name: "recorder"}
	require.NoError(t, b.Register(r))

	two, err := b.CreateSite(ctx, "two.example.org", "/")
	require.NoError(t, err)
	three, err := b.CreateSite(ctx, "three.example.org", "/")
	require.NoError(t, err)

	require.NoError(t, b.SwitchToSite(ctx, two))
	assert.Equal(t, "wp_2_", b.Handle().Prefix)
	require.NoError(t, b.SwitchToSite(ctx, three))
	assert.Equal(t, "wp_3_", b.Handle().Prefix)

	require.NoError(t, b.RestoreCurrentSite())
	assert.Equal(t, two, b.Handle().SiteID)
	require.NoError(t, b.RestoreCurrentSite())
	assert.Equal(t, MainSiteID, b.Handle().SiteID)

	assert.ErrorIs(t, b.RestoreCurrentSite(), types.ErrNoSwitchedSite)
	assert.ErrorIs(t, b.SwitchToSite(ctx, 42), types.ErrSiteNotFound)
	assert.Equal(t, []int64{two, three, two, MainSiteID}, r.switches)
}

func TestBackend_DeleteSite(t *testing.T) {
	ctx := context.Background()
	b := attachedBackend(t)

	siteID, err := b.CreateSite(ctx, "gone.example.org", "/")
	require.NoError(t, err)

	// a component table for the site, added to the drop list by the dropper
	db, err := b.DB()
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE wp_2_widgets (id INTEGER)")
	require.NoError(t, err)
	require.NoError(t, b.Register(&recorder{name: "dropper", extra: "wp_2_widgets"}))

	require.NoError(t, b.DeleteSite(ctx, siteID, true))
	for _, table := range []string{"wp_2_options", "wp_2_terms", "wp_2_term_taxonomy", "wp_2_widgets"} {
		assert.False(t, tableExists(t, b, table), table)
	}
	_, err = b.GetSite(ctx, siteID)
	assert.ErrorIs(t, err, types.ErrSiteNotFound)
	assert.Equal(t, MainSiteID, b.Handle().SiteID, "active site is restored")

	assert.ErrorIs(t, b.DeleteSite(ctx, MainSiteID, true), types.ErrMainSite)
	assert.ErrorIs(t, b.DeleteSite(ctx, 77, false), types.ErrSiteNotFound)
}

func TestBackend_DeleteSiteKeepsTables(t *testing.T) {
	ctx := context.Background()
	b := attachedBackend(t)

	siteID, err := b.CreateSite(ctx, "kept.example.org", "/")
	require.NoError(t, err)
	require.NoError(t, b.DeleteSite(ctx, siteID, false))
	assert.True(t, tableExists(t, b, "wp_2_options"))
}

func TestBackend_IsLargeNetwork(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.LargeNetworkThreshold = 2

	b := NewBackend(nil)
	require.NoError(t, b.Attach(cfg))
	defer b.Detach()

	for i := 0; i < 2; i++ {
		_, err := b.CreateSite(ctx, "example.org", "/")
		require.NoError(t, err)
	}
	large, err := b.IsLargeNetwork(ctx)
	require.NoError(t, err)
	assert.True(t, large, "three sites exceed a threshold of two")
}
