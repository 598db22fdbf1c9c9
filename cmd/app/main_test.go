package main

import (
	"bytes"
	"log/slog"
	"testing"

	"sportoase-service/internal/config"
	"sportoase-service/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupStorage_MemoryWarnsAgainstProduction(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	store, err := setupStorage(&config.Config{StorageDriver: "memory"}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.IsType(t, &memory.Storage{}, store)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "not for production")
}

func TestSetupLocker_LocalWithoutRedis(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	locker, err := setupLocker(&config.Config{}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = locker.Close() })

	assert.Contains(t, buf.String(), "process local")
}
