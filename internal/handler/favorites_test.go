package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favorites-tracker/internal/domain"
	"favorites-tracker/internal/storage/sqlite"
	"favorites-tracker/internal/tracker"
)

// setupRouter builds a router over a real temp-file SQLite store, so handler
// tests exercise the full persistence path.
func setupRouter(t *testing.T, backupPath string) (*gin.Engine, *tracker.Tracker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.New(filepath.Join(t.TempDir(), "favorites.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tr := tracker.New(context.Background(), store)
	h := NewFavoritesHandler(tr, backupPath)

	router := gin.New()
	v1 := router.Group("/api/v1")
	{
		v1.GET("/people", h.ListPeople)
		v1.POST("/people", h.CreatePerson)
		v1.POST("/people/:id/archive", h.ArchivePerson)
		v1.POST("/people/:id/restore", h.RestorePerson)
		v1.DELETE("/people/:id", h.DeletePerson)
		v1.GET("/categories", h.ListCategories)
		v1.POST("/categories", h.CreateCategory)
		v1.GET("/categories/selected", h.SelectedCategory)
		v1.POST("/categories/:id/archive", h.ArchiveCategory)
		v1.PUT("/categories/:id/select", h.SelectCategory)
		v1.DELETE("/categories/:id", h.DeleteCategory)
		v1.GET("/favorites", h.GetFavorites)
		v1.PUT("/favorites", h.SetFavorite)
		v1.GET("/random/category", h.RandomCategory)
		v1.GET("/random/person", h.RandomPerson)
		v1.GET("/random/favorite", h.RandomFavorite)
		v1.GET("/snapshot", h.ExportSnapshot)
		v1.POST("/snapshot", h.ImportSnapshot)
		v1.GET("/snapshot/status", h.SnapshotStatus)
	}
	return router, tr
}

func do(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndListPeople(t *testing.T) {
	router, _ := setupRouter(t, "")

	w := do(router, http.MethodPost, "/api/v1/people", []byte(`{"name":"Mia"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	var created domain.Person
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Mia", created.Name)

	w = do(router, http.MethodGet, "/api/v1/people", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var people []domain.Person
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &people))
	require.Len(t, people, 1)
	assert.Equal(t, created.ID, people[0].ID)
}

func TestCreatePersonRejectsBlankName(t *testing.T) {
	router, _ := setupRouter(t, "")

	for _, body := range []string{`{}`, `{"name":"   "}`, `not json`} {
		w := do(router, http.MethodPost, "/api/v1/people", []byte(body))
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}
}

func TestArchivedPeopleHiddenFromList(t *testing.T) {
	router, _ := setupRouter(t, "")

	w := do(router, http.MethodPost, "/api/v1/people", []byte(`{"name":"Mia"}`))
	var mia domain.Person
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mia))

	w = do(router, http.MethodPost, "/api/v1/people/"+mia.ID+"/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var people []domain.Person
	w = do(router, http.MethodGet, "/api/v1/people", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &people))
	assert.Empty(t, people)

	w = do(router, http.MethodGet, "/api/v1/people?include_archived=true", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &people))
	require.Len(t, people, 1)
	assert.True(t, people[0].Archived)
}

func TestSeededCategoriesAndSelection(t *testing.T) {
	router, _ := setupRouter(t, "")

	var categories []domain.Category
	w := do(router, http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &categories))
	require.Len(t, categories, 6, "fresh store seeds the example categories")

	w = do(router, http.MethodGet, "/api/v1/categories/selected", nil)
	var sel struct {
		Category *domain.Category `json:"category"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sel))
	require.NotNil(t, sel.Category)
	assert.Equal(t, categories[0].ID, sel.Category.ID)
}

func TestSelectCategoryRejectsUnknown(t *testing.T) {
	router, _ := setupRouter(t, "")

	w := do(router, http.MethodPut, "/api/v1/categories/ghost/select", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRandomPersonAdvisoryWhenEmpty(t *testing.T) {
	router, _ := setupRouter(t, "")

	w := do(router, http.MethodGet, "/api/v1/random/person", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no active people")
}

func TestSetAndPickFavorite(t *testing.T) {
	router, _ := setupRouter(t, "")

	w := do(router, http.MethodPost, "/api/v1/people", []byte(`{"name":"Mia"}`))
	var mia domain.Person
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mia))

	var categories []domain.Category
	w = do(router, http.MethodGet, "/api/v1/categories", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &categories))
	candy := categories[0]

	body, _ := json.Marshal(map[string]string{
		"category_id": candy.ID,
		"person_id":   mia.ID,
		"value":       "Gummy bears",
	})
	w = do(router, http.MethodPut, "/api/v1/favorites", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/api/v1/random/favorite", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fav tracker.FilledFavorite
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fav))
	assert.Equal(t, "Gummy bears", fav.Value)
	assert.Equal(t, mia.ID, fav.Person.ID)

	w = do(router, http.MethodGet, "/api/v1/favorites?category_id="+candy.ID, nil)
	var column map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &column))
	assert.Equal(t, "Gummy bears", column[mia.ID])
}

func TestSnapshotRoundTripOverHTTP(t *testing.T) {
	router, _ := setupRouter(t, "")

	w := do(router, http.MethodPost, "/api/v1/people", []byte(`{"name":"Mia"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(router, http.MethodGet, "/api/v1/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", w.Header().Get("X-Backup-Saved"), "no sink configured: manual-copy fallback")
	doc := w.Body.Bytes()

	w = do(router, http.MethodPost, "/api/v1/snapshot", doc)
	require.Equal(t, http.StatusOK, w.Code)

	var people []domain.Person
	w = do(router, http.MethodGet, "/api/v1/people", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &people))
	require.Len(t, people, 1)
	assert.Equal(t, "Mia", people[0].Name)
}

func TestSnapshotExportWritesSink(t *testing.T) {
	backupPath := filepath.Join(t.TempDir(), "backup.json")
	router, _ := setupRouter(t, backupPath)

	w := do(router, http.MethodGet, "/api/v1/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("X-Backup-Saved"))

	var snap domain.Snapshot
	raw, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Len(t, snap.Categories, 6)
}

func TestSnapshotExportSinkFailureFallsBack(t *testing.T) {
	// A directory path makes the sink write fail: "present but rejected".
	router, _ := setupRouter(t, t.TempDir())

	w := do(router, http.MethodGet, "/api/v1/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code, "export still succeeds inline")
	assert.Equal(t, "false", w.Header().Get("X-Backup-Saved"))
}

func TestImportInvalidSnapshotReturns400(t *testing.T) {
	router, tr := setupRouter(t, "")
	before := tr.ExportSnapshot()

	w := do(router, http.MethodPost, "/api/v1/snapshot", []byte(`{"people":{},"categories":[],"favorites":{}}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, before, tr.ExportSnapshot())
}

func TestSnapshotStatus(t *testing.T) {
	router, _ := setupRouter(t, "")

	w := do(router, http.MethodGet, "/api/v1/snapshot/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"last_backup":null`)

	do(router, http.MethodGet, "/api/v1/snapshot", nil)

	w = do(router, http.MethodGet, "/api/v1/snapshot/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		LastBackup *string `json:"last_backup"`
		AgeSeconds *int64  `json:"age_seconds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.NotNil(t, status.LastBackup)
	require.NotNil(t, status.AgeSeconds)
	assert.LessOrEqual(t, *status.AgeSeconds, int64(5))
}

func TestDeletePersonCascadeOverHTTP(t *testing.T) {
	router, tr := setupRouter(t, "")

	w := do(router, http.MethodPost, "/api/v1/people", []byte(`{"name":"Mia"}`))
	var mia domain.Person
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mia))

	candy := tr.ActiveCategories()[0]
	body, _ := json.Marshal(map[string]string{
		"category_id": candy.ID, "person_id": mia.ID, "value": "Gummy bears",
	})
	do(router, http.MethodPut, "/api/v1/favorites", body)

	w = do(router, http.MethodDelete, "/api/v1/people/"+mia.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var favs domain.Favorites
	w = do(router, http.MethodGet, "/api/v1/favorites", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &favs))
	_, present := favs[candy.ID][mia.ID]
	assert.False(t, present)
}
