package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/referrush/csdash/internal/testing/guard"
)

func TestMainReturnsInTestMode(t *testing.T) {
	main()
}

func TestRouterServesSeededCustomers(t *testing.T) {
	store, err := loadStore("")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	newRouter(store).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/customers", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var env struct {
		Success bool              `json:"success"`
		Data    []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Len(t, env.Data, 3)
}

func TestLoadStoreFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("customers:\n  - _id: cust_one\n    name: One Shop\n"), 0o600))
	store, err := loadStore(path)
	require.NoError(t, err)
	assert.Len(t, store.Customers(), 1)

	_, err = loadStore(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
