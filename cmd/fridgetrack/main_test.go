package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/inventory/user-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user_id":"user-1","items":[{"_id":"i1","item_name":"milk","confidence_score":0.91,"status":"active","expiration_date":"2026-10-17"}],"total":1}`))
	})
	mux.HandleFunc("/api/items/i1/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Item status updated to consumed","item_id":"i1"}`))
	})
	mux.HandleFunc("/api/items/missing/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Item not found"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server.URL
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf("app:\n  environment: production\napi:\n  base_url: %s\nlogging:\n  level: error\n  format: console\n", baseURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestInventoryCommand(t *testing.T) {
	cfg := writeConfig(t, newBackend(t))

	out, _, err := execute(t, "--config", cfg, "--user", "user-1", "inventory")
	require.NoError(t, err)

	var items []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "i1", items[0]["id"])
	assert.Equal(t, "milk", items[0]["name"])
}

func TestConsumeCommand(t *testing.T) {
	cfg := writeConfig(t, newBackend(t))

	out, _, err := execute(t, "--config", cfg, "-u", "user-1", "consume", "i1")
	require.NoError(t, err)
	assert.Contains(t, out, `"consumed"`)

	_, _, err = execute(t, "--config", cfg, "-u", "user-1", "consume", "missing")
	require.Error(t, err)
	assert.Equal(t, "Item not found. It may have already been removed. (status 404)", err.Error())
}

func TestDeleteCommandIsNotSupported(t *testing.T) {
	cfg := writeConfig(t, newBackend(t))

	_, _, err := execute(t, "--config", cfg, "-u", "user-1", "delete", "i1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 501")
}

func TestUserIsRequired(t *testing.T) {
	cfg := writeConfig(t, newBackend(t))

	_, _, err := execute(t, "--config", cfg, "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user")
}

func TestInvalidStatusFlag(t *testing.T) {
	cfg := writeConfig(t, newBackend(t))

	_, _, err := execute(t, "--config", cfg, "-u", "user-1", "inventory", "--status", "eaten")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestMetricsCommandNeedsNoConfig(t *testing.T) {
	out, _, err := execute(t, "metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "go_goroutines")
}
