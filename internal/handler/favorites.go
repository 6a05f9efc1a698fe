// internal/handler/favorites.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	val "favorites-tracker/internal/validator"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"favorites-tracker/internal/metrics"
	"favorites-tracker/internal/tracker"
)

type FavoritesHandler struct {
	tracker *tracker.Tracker

	// backupPath is the optional export sink; empty means exports always
	// take the manual-copy path.
	backupPath string
}

func NewFavoritesHandler(t *tracker.Tracker, backupPath string) *FavoritesHandler {
	return &FavoritesHandler{tracker: t, backupPath: backupPath}
}

// ListPeople godoc
// @Summary List people (active only unless include_archived=true)
// @Router /api/v1/people [get]
func (h *FavoritesHandler) ListPeople(c *gin.Context) {
	if c.Query("include_archived") == "true" {
		c.JSON(http.StatusOK, h.tracker.People())
		return
	}
	c.JSON(http.StatusOK, h.tracker.ActivePeople())
}

// CreatePerson godoc
// @Summary Add a person
// @Router /api/v1/people [post]
func (h *FavoritesHandler) CreatePerson(c *gin.Context) {
	var req CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if err := validateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := h.tracker.AddPerson(c.Request.Context(), strings.TrimSpace(req.Name))
	c.JSON(http.StatusCreated, p)
}

// ArchivePerson godoc
// @Summary Archive a person (silent no-op on unknown id)
// @Router /api/v1/people/{id}/archive [post]
func (h *FavoritesHandler) ArchivePerson(c *gin.Context) {
	h.tracker.ArchivePerson(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RestorePerson godoc
// @Summary Restore an archived person
// @Router /api/v1/people/{id}/restore [post]
func (h *FavoritesHandler) RestorePerson(c *gin.Context) {
	h.tracker.RestorePerson(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeletePerson godoc
// @Summary Delete a person and cascade their favorites away
// @Router /api/v1/people/{id} [delete]
func (h *FavoritesHandler) DeletePerson(c *gin.Context) {
	h.tracker.DeletePerson(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListCategories godoc
// @Summary List categories (active only unless include_archived=true)
// @Router /api/v1/categories [get]
func (h *FavoritesHandler) ListCategories(c *gin.Context) {
	if c.Query("include_archived") == "true" {
		c.JSON(http.StatusOK, h.tracker.Categories())
		return
	}
	c.JSON(http.StatusOK, h.tracker.ActiveCategories())
}

// CreateCategory godoc
// @Summary Add a category
// @Router /api/v1/categories [post]
func (h *FavoritesHandler) CreateCategory(c *gin.Context) {
	var req CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if err := validateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cat := h.tracker.AddCategory(c.Request.Context(), strings.TrimSpace(req.Name))
	c.JSON(http.StatusCreated, cat)
}

// ArchiveCategory godoc
// @Summary Archive a category (selection falls back if needed)
// @Router /api/v1/categories/{id}/archive [post]
func (h *FavoritesHandler) ArchiveCategory(c *gin.Context) {
	h.tracker.ArchiveCategory(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RestoreCategory godoc
// @Summary Restore an archived category
// @Router /api/v1/categories/{id}/restore [post]
func (h *FavoritesHandler) RestoreCategory(c *gin.Context) {
	h.tracker.RestoreCategory(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteCategory godoc
// @Summary Delete a category and its favorites column
// @Router /api/v1/categories/{id} [delete]
func (h *FavoritesHandler) DeleteCategory(c *gin.Context) {
	h.tracker.DeleteCategory(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SelectCategory godoc
// @Summary Move the selection cursor to an active category
// @Router /api/v1/categories/{id}/select [put]
func (h *FavoritesHandler) SelectCategory(c *gin.Context) {
	if !h.tracker.SelectCategory(c.Request.Context(), c.Param("id")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown or archived category"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SelectedCategory godoc
// @Summary Current selection, null when no active category exists
// @Router /api/v1/categories/selected [get]
func (h *FavoritesHandler) SelectedCategory(c *gin.Context) {
	if cat, ok := h.tracker.SelectedCategory(); ok {
		c.JSON(http.StatusOK, gin.H{"category": cat})
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": nil})
}

// GetFavorites godoc
// @Summary Full favorites matrix, or one category's column via category_id
// @Router /api/v1/favorites [get]
func (h *FavoritesHandler) GetFavorites(c *gin.Context) {
	if categoryID := c.Query("category_id"); categoryID != "" {
		c.JSON(http.StatusOK, h.tracker.FavoritesFor(categoryID))
		return
	}
	c.JSON(http.StatusOK, h.tracker.Favorites())
}

// SetFavorite godoc
// @Summary Upsert one favorite value (empty string allowed)
// @Router /api/v1/favorites [put]
func (h *FavoritesHandler) SetFavorite(c *gin.Context) {
	var req SetFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if err := validateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.tracker.SetFavorite(c.Request.Context(), req.CategoryID, req.PersonID, req.Value)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RandomCategory godoc
// @Summary Uniform pick among active categories
// @Router /api/v1/random/category [get]
func (h *FavoritesHandler) RandomCategory(c *gin.Context) {
	cat, err := h.tracker.PickRandomCategory()
	if err != nil {
		metrics.Picks.WithLabelValues("category", "empty").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "no active categories"})
		return
	}
	metrics.Picks.WithLabelValues("category", "ok").Inc()
	c.JSON(http.StatusOK, cat)
}

// RandomPerson godoc
// @Summary Uniform pick among active people
// @Router /api/v1/random/person [get]
func (h *FavoritesHandler) RandomPerson(c *gin.Context) {
	p, err := h.tracker.PickRandomPerson()
	if err != nil {
		metrics.Picks.WithLabelValues("person", "empty").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "no active people"})
		return
	}
	metrics.Picks.WithLabelValues("person", "ok").Inc()
	c.JSON(http.StatusOK, p)
}

// RandomFavorite godoc
// @Summary Uniform pick among filled favorites of active pairs
// @Router /api/v1/random/favorite [get]
func (h *FavoritesHandler) RandomFavorite(c *gin.Context) {
	fav, err := h.tracker.PickRandomFilledFavorite()
	if err != nil {
		metrics.Picks.WithLabelValues("favorite", "empty").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "no filled favorites"})
		return
	}
	metrics.Picks.WithLabelValues("favorite", "ok").Inc()
	c.JSON(http.StatusOK, fav)
}

// ExportSnapshot godoc
// @Summary Export the backup document
// @Description The body is the snapshot itself. The X-Backup-Saved header
// @Description reports whether the configured backup sink accepted a copy;
// @Description "false" is the manual-copy fallback.
// @Router /api/v1/snapshot [get]
func (h *FavoritesHandler) ExportSnapshot(c *gin.Context) {
	snap := h.tracker.ExportSnapshot()

	saved := false
	if h.backupPath != "" {
		if err := h.writeBackupFile(snap); err != nil {
			slog.Error("Backup sink rejected snapshot", "path", h.backupPath, "error", err)
		} else {
			saved = true
		}
	}

	backedUpAt := h.tracker.MarkBackedUp(c.Request.Context())
	metrics.Snapshots.WithLabelValues("export", "ok").Inc()
	slog.Info("Snapshot exported", "saved_to_sink", saved, "backed_up_at", backedUpAt)

	c.Header("X-Backup-Saved", fmt.Sprintf("%t", saved))
	c.JSON(http.StatusOK, snap)
}

func (h *FavoritesHandler) writeBackupFile(snap any) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(h.backupPath, raw, 0o644)
}

// ImportSnapshot godoc
// @Summary Replace all state from a backup document (all-or-nothing)
// @Router /api/v1/snapshot [post]
func (h *FavoritesHandler) ImportSnapshot(c *gin.Context) {
	doc, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	if err := h.tracker.ImportSnapshot(c.Request.Context(), doc); err != nil {
		if errors.Is(err, tracker.ErrInvalidSnapshot) {
			metrics.Snapshots.WithLabelValues("import", "invalid").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Error("ImportSnapshot failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	metrics.Snapshots.WithLabelValues("import", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SnapshotStatus godoc
// @Summary Advisory time-since-last-backup info
// @Router /api/v1/snapshot/status [get]
func (h *FavoritesHandler) SnapshotStatus(c *gin.Context) {
	ts, ok := h.tracker.LastBackup(c.Request.Context())
	if !ok {
		c.JSON(http.StatusOK, gin.H{"last_backup": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"last_backup": ts.Format(time.RFC3339),
		"age_seconds": int64(time.Since(ts).Seconds()),
	})
}

// === DTO ===

type CreateEntityRequest struct {
	Name string `json:"name" validate:"required,notblank"`
}

type SetFavoriteRequest struct {
	CategoryID string `json:"category_id" validate:"required,notblank"`
	PersonID   string `json:"person_id" validate:"required,notblank"`
	// Value carries no validation tags: an explicit empty string is a
	// legitimate favorite value.
	Value string `json:"value"`
}

func validateStruct(v any) error {
	if err := val.Validate.Struct(v); err != nil {
		var errs []string
		for _, e := range err.(validator.ValidationErrors) {
			errs = append(errs, fieldErrorToString(e))
		}
		return fmt.Errorf("invalid input: %s", strings.Join(errs, "; "))
	}
	return nil
}

func fieldErrorToString(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", e.Field())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}
