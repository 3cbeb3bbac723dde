// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Missing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ndcterm.yaml")
	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "", s.Get("config_id"))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file is created lazily")
}

func TestSet_Persists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ndcterm.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Set("config_id", "0123"))
	require.NoError(t, s.Set("tsn", "0042"))
	require.NoError(t, s.Set("tsn", "0043"))

	reopened, err := Open(path)
	require.NoError(t, err)
	// Leading zeros survive the round trip
	assert.Equal(t, map[string]string{"config_id": "0123", "tsn": "0043"}, reopened.All())
}

func TestOpen_Existing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ndcterm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("message_coordination_number: \"5\"\nconfig_id: \"0007\"\n"), 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "5", s.Get("message_coordination_number"))
	assert.Equal(t, "0007", s.Get("config_id"))
}

func TestOpen_Empty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ndcterm.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("a", "b"))
	assert.Equal(t, "b", s.Get("a"))
}

func TestOpen_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ndcterm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o600))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	s, err := Open("")
	require.NoError(t, err)
	require.NoError(t, s.Set("tsn", "0001"))
	assert.Equal(t, "0001", s.Get("tsn"))
	assert.Equal(t, "", s.Path())
}

func TestSet_FailureKeepsOldValue(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing-dir", "ndcterm.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	assert.Error(t, s.Set("tsn", "0001"))
	assert.Equal(t, "", s.Get("tsn"))
}
