package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataStore_InsertIfAbsent(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	pub := &core.Publication{
		Title:    "Equity Risk Premium",
		Summary:  core.Ptr("Survey results."),
		FileLink: core.Ptr("https://example.org/erp.pdf"),
	}

	inserted, err := stores.Metadata.InsertIfAbsent(ctx, pub)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.False(t, pub.InsertedAt.IsZero())

	// Same title with different content is not written again.
	dup := &core.Publication{Title: "Equity Risk Premium", Summary: core.Ptr("changed")}
	inserted, err = stores.Metadata.InsertIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := stores.Metadata.Get(ctx, "Equity Risk Premium")
	require.NoError(t, err)
	assert.Equal(t, "Survey results.", core.Deref(got.Summary))
	assert.Nil(t, got.ImageLink)
}

func TestMetadataStore_InvalidPublication(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	_, err = stores.Metadata.InsertIfAbsent(context.Background(), &core.Publication{Title: core.NotAvailable})
	assert.ErrorIs(t, err, core.ErrEmptyTitle)
}

func TestMetadataStore_GetMissing(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	_, err = stores.Metadata.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMetadataStore_ListInInsertionOrder(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	titles := []string{"Zeta", "Alpha", "Mu"}
	for i, title := range titles {
		_, err := stores.Metadata.InsertIfAbsent(ctx, &core.Publication{
			Title:      title,
			InsertedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	pubs, err := stores.Metadata.List(ctx)
	require.NoError(t, err)
	require.Len(t, pubs, 3)
	for i, pub := range pubs {
		assert.Equal(t, titles[i], pub.Title)
	}
}
