package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/repository"
	"github.com/noah-isme/serene-scheduler/pkg/config"
)

func TestOpenFileDriver(t *testing.T) {
	cfg := &config.Config{Datasets: config.DatasetConfig{Driver: config.DatasetDriverFile, Dir: t.TempDir()}}

	backends, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer backends.Close()

	assert.IsType(t, &repository.FileRepository{}, backends.Datasets)
	assert.Nil(t, backends.Cache)
	assert.Empty(t, backends.Probes)

	require.NoError(t, backends.Datasets.Save(context.Background(), "users", []string{"admin"}))
	var users []string
	found, err := backends.Datasets.Load(context.Background(), "users", &users)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"admin"}, users)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := &config.Config{Datasets: config.DatasetConfig{Driver: "mongo"}}

	_, err := Open(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, `unknown dataset driver "mongo"`)
}
