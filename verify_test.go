package recidx

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifySSMatchesDiskState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ss.idx")

	h, err := Create(BackendSS, path, 5, 50, Config{})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		k := fmt.Sprintf("%05d", i)
		require.NoError(t, h.Insert(k, uint64(i)*10), "Insert(%s)", k)
	}
	require.NoError(t, h.Verify())
	require.NoError(t, h.Close())
}

func TestVerifyVAMatchesDiskState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "va.idx")

	h, err := Create(BackendVA, path, 0, 0, Config{})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, h.Insert(fmt.Sprintf("%d", i), uint64(i)*10))
	}
	require.NoError(t, h.Verify())
	require.NoError(t, h.Close())
}

func TestDumpListsEveryLiveKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ss.idx")

	h, err := Create(BackendSS, path, 4, 30, Config{})
	require.NoError(t, err)
	defer h.Close()

	keys := []string{"0001", "0002", "0003"}
	for i, k := range keys {
		require.NoError(t, h.Insert(k, uint64(i)), "Insert(%s)", k)
	}

	var buf bytes.Buffer
	require.NoError(t, h.Dump(&buf))

	out := buf.String()
	for _, k := range keys {
		require.Contains(t, out, k)
	}
}

func TestDumpRefusesVA(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "va.idx")

	h, err := Create(BackendVA, path, 0, 0, Config{})
	require.NoError(t, err)
	defer h.Close()

	require.Error(t, h.Dump(&bytes.Buffer{}))
}
