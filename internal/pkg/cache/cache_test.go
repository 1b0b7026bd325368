package cache

import (
	"testing"
	"time"

	"github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(memory.New(), time.Minute)

	var got cachedThing
	hit, err := store.GetJSON("thing:1", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, store.SetJSON("thing:1", cachedThing{ID: "1", Status: "PENDING"}))
	hit, err = store.GetJSON("thing:1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "PENDING", got.Status)

	require.NoError(t, store.Delete("thing:1"))
	hit, err = store.GetJSON("thing:1", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStoreDropsCorruptEntries(t *testing.T) {
	mem := memory.New()
	require.NoError(t, mem.Set("thing:2", []byte("{not json"), 0))
	store := NewStore(mem, time.Minute)

	var got cachedThing
	hit, err := store.GetJSON("thing:2", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	raw, err := mem.Get("thing:2")
	require.NoError(t, err)
	assert.Nil(t, raw)
}
