// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/m-ostrander/pokerhub/internal/auth"
	"github.com/m-ostrander/pokerhub/internal/cache"
	"github.com/m-ostrander/pokerhub/internal/database"
	"github.com/m-ostrander/pokerhub/internal/handlers"
	"github.com/m-ostrander/pokerhub/internal/middleware"
	"github.com/m-ostrander/pokerhub/internal/room"
	"github.com/m-ostrander/pokerhub/internal/session"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := auth.Init(); err != nil {
		log.Fatalf("auth init failed: %v", err)
	}

	ctx := context.Background()

	rdb, err := cache.Connect(ctx)
	if err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}
	pool, err := database.Connect(ctx)
	if err != nil {
		log.Fatalf("postgres connect failed: %v", err)
	}
	defer pool.Close()

	store := cache.NewStore(rdb)
	catalog := database.NewCatalog(pool)
	registry := session.NewRegistry()

	rooms := room.NewService(store, store, catalog, registry, logger,
		auth.ComparePasswordAndHash, auth.HashPassword)
	auditor := room.NewAuditor(store, store, logger)
	rs := handlers.NewRoomServer(rooms, auditor, registry)

	// Periodic orphan sweep; TTL expiry alone would leave pointers dangling
	// for up to an hour.
	go runAuditSweep(ctx, auditor, logger)

	mux := http.NewServeMux()

	// Room websocket. Not wrapped in LogMiddleware: the upgrade needs the
	// raw ResponseWriter.
	mux.Handle("/rooms/ws", http.HandlerFunc(handlers.RoomWSHandler(logger, rs)))

	mux.Handle("/healthz", middleware.LogMiddleware(logger)(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		},
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// runAuditSweep runs the orphaned-pointer cleanup on a fixed interval,
// configurable via AUDIT_SWEEP_INTERVAL (default 10m).
func runAuditSweep(ctx context.Context, auditor *room.Auditor, logger *logrus.Logger) {
	interval := 10 * time.Minute
	if raw := os.Getenv("AUDIT_SWEEP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			interval = d
		} else {
			logger.Warnf("Invalid AUDIT_SWEEP_INTERVAL %q, using %s", raw, interval)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
			report, err := auditor.CleanupOrphanedUserStates(sweepCtx)
			cancel()
			if err != nil {
				logger.Warnf("Orphan sweep failed: %v", err)
				continue
			}
			if report.Cleaned > 0 || len(report.Errors) > 0 {
				logger.WithFields(logrus.Fields{
					"scanned": report.Scanned,
					"cleaned": report.Cleaned,
					"errors":  len(report.Errors),
				}).Info("Orphan sweep finished")
			}
		}
	}
}
