package lists

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTrackerCatalogueStripsContentCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"categories":{"Content":{"a":{}},"Advertising":{"b":{}}}}`))
	}))
	defer srv.Close()

	orig := DisconnectServicesURL
	t.Cleanup(func() { DisconnectServicesURL = orig })
	DisconnectServicesURL = srv.URL

	dir := t.TempDir()
	require.NoError(t, RefreshTrackerCatalogue(context.Background(), dir))

	data, err := os.ReadFile(filepath.Join(dir, "disconnect", "disconnect.json"))
	require.NoError(t, err)

	var doc servicesDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.NotContains(t, doc.Categories, "Content")
	assert.Contains(t, doc.Categories, "Advertising")
}

func TestRefreshTrackerCatalogueFailsOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	orig := DisconnectServicesURL
	t.Cleanup(func() { DisconnectServicesURL = orig })
	DisconnectServicesURL = srv.URL

	assert.Error(t, RefreshTrackerCatalogue(context.Background(), t.TempDir()))
}
