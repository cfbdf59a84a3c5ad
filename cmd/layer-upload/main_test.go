package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"geo-api/internal/objstore"
	"geo-api/internal/store"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLayers(t *testing.T) {
	ls, err := parseLayers(nil)
	require.NoError(t, err)
	assert.Equal(t, store.Layers, ls)

	ls, err = parseLayers([]string{"countries", "boundary"})
	require.NoError(t, err)
	assert.Equal(t, []store.Layer{store.LayerCountries, store.LayerBoundary}, ls)

	_, err = parseLayers([]string{"rivers"})
	assert.True(t, errors.Is(err, store.ErrUnknownLayer))
}

func TestUpload_ServedByRemote(t *testing.T) {
	root := t.TempDir()
	custom := `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"name":"gate"}}]}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "boundary.geojson"), []byte(custom), 0o644))

	mem := objstore.NewMem()
	ctx := context.Background()
	require.NoError(t, upload(ctx, mem, "campus-data", root, store.Layers))

	remote := store.NewRemote(nil, mem, "campus-data")
	fc, err := remote.Resolve(ctx, store.LayerBoundary)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "gate", fc.Features[0].Properties["name"])

	// 本地缺失的图层上传内置默认数据
	fc, err = remote.Resolve(ctx, store.LayerCountries)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestUpload_MalformedFileStops(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "buildings.geojson"), []byte("{nope"), 0o644))

	mem := objstore.NewMem()
	err := upload(context.Background(), mem, "b", root, []store.Layer{store.LayerBoundary, store.LayerBuildings, store.LayerCountries})
	require.Error(t, err)

	_, err = mem.ReadBlob(context.Background(), "b", "boundary.geojson")
	assert.NoError(t, err)
	_, err = mem.ReadBlob(context.Background(), "b", "countries.geojson")
	assert.True(t, errors.Is(err, objstore.ErrNotFound))
}
