// CLAUDE:SUMMARY Entry point for the recolte HTTP daemon — chi router, bearer-token admin auth, optional stdio MCP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/recolte"
	"github.com/hazyhaar/recolte/internal/registry"
	"github.com/hazyhaar/recolte/internal/tags"
)

const version = "1.0.0"

func main() {
	port := env("PORT", "8090")
	configPath := env("RECOLTE_CONFIG", "")
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")

	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := recolte.LoadConfig(configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("FILES_DIR"); v != "" {
		cfg.FilesDir = v
	}

	// Admin token: stored only as a bcrypt hash; compared per request.
	adminToken := os.Getenv("ADMIN_TOKEN")
	var adminHash []byte
	if adminToken != "" {
		adminHash, err = bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("admin token hash", "error", err)
			os.Exit(1)
		}
	}

	svc, err := recolte.New(cfg, logger)
	if err != nil {
		slog.Error("recolte service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// Optional MCP over stdio. HTTP and MCP share the same Service.
	if mcpTransport == "stdio" {
		mcpSrv := svc.NewMCPServer(version)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("mcp", "error", err)
			}
		}()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok", "version": version})
	})

	// Ingestion.
	r.Post("/api/process", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL   string   `json:"url"`
			Tags  []string `json:"tags"`
			Force bool     `json:"force"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		if req.URL == "" {
			writeError(w, 400, fmt.Errorf("url is required"))
			return
		}
		opts := recolte.Options{ForceReprocess: req.Force}
		var res *recolte.Result
		if len(req.Tags) > 0 {
			res = svc.ProcessURLWithTags(r.Context(), req.URL, req.Tags, opts)
		} else {
			res = svc.ProcessURL(r.Context(), req.URL, opts)
		}
		code := 200
		if res.Error != nil {
			code = 422
		}
		writeJSON(w, code, res)
	})

	r.Post("/api/process/batch", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URLs   []string `json:"urls"`
			Window int      `json:"window"`
			Force  bool     `json:"force"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		if len(req.URLs) == 0 {
			writeError(w, 400, fmt.Errorf("urls is required"))
			return
		}
		results := svc.ProcessURLs(r.Context(), req.URLs, recolte.Options{
			WindowSize:     req.Window,
			ForceReprocess: req.Force,
		})
		writeJSON(w, 200, results)
	})

	r.Post("/api/process/by-tag", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tags               []string `json:"tags"`
			IncludeDescendants bool     `json:"include_descendants"`
			RequireAll         bool     `json:"require_all"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		results, err := svc.ProcessURLsByTag(r.Context(), req.Tags, req.IncludeDescendants, req.RequireAll, recolte.Options{})
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if results == nil {
			results = []*recolte.Result{}
		}
		writeJSON(w, 200, results)
	})

	// URL registry.
	r.Post("/api/urls", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL      string         `json:"url"`
			Metadata map[string]any `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		id, err := svc.AddURL(r.Context(), req.URL, req.Metadata)
		if err != nil {
			writeError(w, 400, err)
			return
		}
		writeJSON(w, 201, map[string]string{"id": id})
	})

	r.Get("/api/urls", func(w http.ResponseWriter, r *http.Request) {
		urls, err := svc.ListURLs(r.Context(), registry.Filter{
			Status:      r.URL.Query().Get("status"),
			ContentType: r.URL.Query().Get("content_type"),
			Limit:       queryInt(r, "limit", 100),
			Offset:      queryInt(r, "offset", 0),
		})
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if urls == nil {
			urls = []*recolte.URLRecord{}
		}
		writeJSON(w, 200, urls)
	})

	r.Get("/api/urls/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, err := svc.GetURLByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if rec == nil {
			writeError(w, 404, recolte.ErrURLNotFound)
			return
		}
		writeJSON(w, 200, rec)
	})

	r.Delete("/api/urls/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.RemoveURL(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "deleted"})
	})

	r.Get("/api/urls/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		history, err := svc.IngestHistory(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit", 50))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, history)
	})

	r.Get("/api/urls/{id}/entries", func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.ListKnowledgeEntries(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit", 50))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, entries)
	})

	r.Get("/api/urls/{id}/files", func(w http.ResponseWriter, r *http.Request) {
		files, err := svc.OriginalFiles(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit", 50))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, files)
	})

	r.Post("/api/urls/{id}/tags", func(w http.ResponseWriter, r *http.Request) {
		urlID := chi.URLParam(r, "id")
		var req struct {
			Tags []string `json:"tags"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		ids, err := svc.EnsureTags(r.Context(), req.Tags)
		if err != nil {
			writeError(w, 400, err)
			return
		}
		if err := svc.TagURL(r.Context(), urlID, ids); err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]any{"url_id": urlID, "tag_ids": ids})
	})

	r.Get("/api/urls/{id}/tags", func(w http.ResponseWriter, r *http.Request) {
		attached, err := svc.TagsForURL(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, attached)
	})

	// Original payloads.
	r.Get("/api/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.OpenOriginalFile(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, recolte.ErrFileNotFound) {
				writeError(w, 404, err)
			} else {
				writeError(w, 500, err)
			}
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)
	})

	// Tags.
	r.Post("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name        string `json:"name"`
			ParentID    string `json:"parent_id"`
			Description string `json:"description"`
			Color       string `json:"color"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		tag, err := svc.CreateTag(r.Context(), tags.CreateSpec{
			Name:        req.Name,
			ParentID:    req.ParentID,
			Description: req.Description,
			Color:       req.Color,
		})
		if err != nil {
			writeError(w, tagErrorStatus(err), err)
			return
		}
		writeJSON(w, 201, tag)
	})

	r.Get("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListTags(r.Context(), tags.ListFilter{
			ParentID:  r.URL.Query().Get("parent_id"),
			RootsOnly: r.URL.Query().Get("roots") == "true",
		})
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if list == nil {
			list = []*recolte.Tag{}
		}
		writeJSON(w, 200, list)
	})

	r.Put("/api/tags/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name        *string `json:"name"`
			ParentID    *string `json:"parent_id"`
			Description *string `json:"description"`
			Color       *string `json:"color"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		tag, err := svc.UpdateTag(r.Context(), chi.URLParam(r, "id"), tags.Patch{
			Name:        req.Name,
			ParentID:    req.ParentID,
			Description: req.Description,
			Color:       req.Color,
		})
		if err != nil {
			writeError(w, tagErrorStatus(err), err)
			return
		}
		writeJSON(w, 200, tag)
	})

	r.Delete("/api/tags/{id}", func(w http.ResponseWriter, r *http.Request) {
		cascade := r.URL.Query().Get("cascade") == "true"
		if err := svc.DeleteTag(r.Context(), chi.URLParam(r, "id"), cascade); err != nil {
			writeError(w, tagErrorStatus(err), err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "deleted"})
	})

	r.Get("/api/tags/{id}/path", func(w http.ResponseWriter, r *http.Request) {
		path, err := svc.TagPath(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, tagErrorStatus(err), err)
			return
		}
		writeJSON(w, 200, path)
	})

	// Search and introspection.
	r.Get("/api/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			writeError(w, 400, fmt.Errorf("q is required"))
			return
		}
		hits, err := svc.Search(r.Context(), q, queryInt(r, "limit", 20))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if hits == nil {
			hits = []*recolte.SearchResult{}
		}
		writeJSON(w, 200, hits)
	})

	r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, stats)
	})

	r.Get("/api/operations", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, svc.Operations())
	})

	// Admin endpoints require the bearer token.
	r.Group(func(r chi.Router) {
		r.Use(requireAdmin(adminHash))

		r.Post("/api/admin/operations/cancel", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, map[string]int{"cancelled": svc.CancelAll()})
		})

		r.Post("/api/admin/sweep", func(w http.ResponseWriter, r *http.Request) {
			n, err := svc.SweepFiles(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]int{"swept": n})
		})

		r.Post("/api/admin/purge-failed", func(w http.ResponseWriter, r *http.Request) {
			n, err := svc.PurgeFailed(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]int{"purged": n})
		})
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// requireAdmin checks the Authorization bearer token against the bcrypt hash
// of ADMIN_TOKEN. No token configured means admin endpoints are disabled.
func requireAdmin(adminHash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminHash == nil {
				writeJSON(w, 403, map[string]string{"error": "admin endpoints disabled"})
				return
			}
			const prefix = "Bearer "
			header := r.Header.Get("Authorization")
			if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
				writeJSON(w, 401, map[string]string{"error": "missing bearer token"})
				return
			}
			if bcrypt.CompareHashAndPassword(adminHash, []byte(header[len(prefix):])) != nil {
				writeJSON(w, 403, map[string]string{"error": "invalid token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// tagErrorStatus maps tag domain errors onto HTTP statuses.
func tagErrorStatus(err error) int {
	switch {
	case tags.IsCode(err, tags.CodeTagExists):
		return 409
	case tags.IsCode(err, tags.CodeTagNotFound), tags.IsCode(err, tags.CodeParentNotFound):
		return 404
	case tags.IsCode(err, tags.CodeCircularReference), tags.IsCode(err, tags.CodePathTooDeep):
		return 400
	default:
		return 500
	}
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
