package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/store"
)

func TestSampleProductsAreValid(t *testing.T) {
	for _, np := range sampleProducts() {
		assert.NoError(t, np.Validate(), np.Name)
	}
}

func TestSeedProducts(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	seeded, err := seedProducts(ctx, st)
	require.NoError(t, err)
	require.Len(t, seeded, 3)

	ps, err := st.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, "Tussar Silk Saree", ps[0].Name)
	for _, p := range ps {
		assert.True(t, p.Available)
	}
}
