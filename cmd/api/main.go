// cmd/api/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"favorites-tracker/internal/config"
	"favorites-tracker/internal/handler"
	"favorites-tracker/internal/metrics"
	"favorites-tracker/internal/storage"
	"favorites-tracker/internal/storage/postgres"
	"favorites-tracker/internal/storage/sqlite"
	"favorites-tracker/internal/tracker"
	"favorites-tracker/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	logging.Setup()

	cfg := config.MustLoad()

	store := mustOpenStore(cfg)
	defer store.Close()

	t := tracker.New(context.Background(), store)
	t.Subscribe(metrics.Observe)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handler.NewFavoritesHandler(t, cfg.BackupPath)
	v1 := router.Group("/api/v1")
	{
		v1.GET("/people", h.ListPeople)
		v1.POST("/people", h.CreatePerson)
		v1.POST("/people/:id/archive", h.ArchivePerson)
		v1.POST("/people/:id/restore", h.RestorePerson)
		v1.DELETE("/people/:id", h.DeletePerson)

		v1.GET("/categories", h.ListCategories)
		v1.POST("/categories", h.CreateCategory)
		// "selected" регистрируем до :id, иначе конфликт роутов
		v1.GET("/categories/selected", h.SelectedCategory)
		v1.POST("/categories/:id/archive", h.ArchiveCategory)
		v1.POST("/categories/:id/restore", h.RestoreCategory)
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

	slog.Info("Server started", "port", cfg.ServerPort, "storage", cfg.StorageDriver)
	if err := router.Run(cfg.ServerPort); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func mustOpenStore(cfg config.Config) storage.KVStorage {
	switch cfg.StorageDriver {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.DBConn)
		if err != nil {
			slog.Error("Failed to connect to Postgres", "error", err)
			os.Exit(1)
		}
		if err := pool.Ping(context.Background()); err != nil {
			slog.Error("Postgres ping failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Storage initialized", "driver", "postgres")
		return postgres.NewStorage(pool)
	case "sqlite":
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			slog.Error("Failed to open SQLite store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		slog.Info("Storage initialized", "driver", "sqlite", "path", cfg.SQLitePath)
		return store
	default:
		slog.Error("Unknown STORAGE_DRIVER", "driver", cfg.StorageDriver)
		os.Exit(1)
		return nil
	}
}
