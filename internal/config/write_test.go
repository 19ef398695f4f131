// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	want := Default()
	want.Upstream = "http://backend:8080"
	want.Canonical = true
	want.DefaultHeaders = map[string]string{"X-Api-Version": "2"}

	require.NoError(t, WriteFile(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch after round trip (-want +got):\n%s", diff)
	}
}

func TestMarshal_DurationsAreReadable(t *testing.T) {
	data, err := Marshal(Default())
	require.NoError(t, err)
	require.Contains(t, string(data), "shutdownTimeout: 10s")
	require.Contains(t, string(data), "window: 1m0s")
}
