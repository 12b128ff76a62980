package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/xlab/closer"

	"voxelsim/internal/config"
	"voxelsim/internal/game"
	"voxelsim/internal/modlog"
	"voxelsim/internal/persistence/indexdb"
	"voxelsim/internal/persistence/modlogfile"
	"voxelsim/internal/transport/ws"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	flag.Parse()

	logger := log.New(os.Stderr, "voxelsim ", log.LstdFlags|log.Lmicroseconds)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			logger.Fatalf("config: %v", err)
		}
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	var db *indexdb.Store
	if cfg.Persistence.IndexDB != "" {
		var err error
		if db, err = indexdb.Open(cfg.Persistence.IndexDB); err != nil {
			logger.Fatalf("index db: %v", err)
		}
		if err := db.BindSeed(context.Background(), cfg.World.Seed); err != nil {
			logger.Fatalf("index db: %v", err)
		}
	}
	mods := loadMods(cfg, db, logger)

	srv := ws.NewServer(ws.Options{EditRate: cfg.Server.EditRate, EditBurst: cfg.Server.EditBurst}, logger)
	engine, err := game.NewEngine(cfg, mods, srv, logger)
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}
	srv.Bind(engine)
	if db != nil {
		engine.SetChunkSink(db)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", srv.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("engine: %v", err)
		}
	}()
	go func() {
		logger.Printf("listening on %s", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("http: %v", err)
			closer.Close()
		}
	}()

	closer.Bind(func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = httpSrv.Shutdown(shutdownCtx)

		cancel()
		<-runDone
		flushed := engine.Shutdown()
		logger.Printf("flushed %d fluid cells", flushed)
		saveMods(cfg, db, engine.Store().Modifications(), logger)
		if db != nil {
			_ = db.Close()
		}
	})
	closer.Hold()
}

// loadMods reads the log file, then merges the index database over it. The
// database is written on every eviction, so after a crash it can hold edits
// newer than the file.
func loadMods(cfg config.Config, db *indexdb.Store, logger *log.Logger) *modlog.Log {
	l := modlog.New()
	if path := cfg.Persistence.ModLogPath; path != "" {
		fromFile, skipped, err := modlogfile.Read(path)
		switch {
		case err == nil:
			logger.Printf("loaded %d modifications from %s (%d skipped)", fromFile.Len(), path, skipped)
			l = fromFile
		case errors.Is(err, fs.ErrNotExist):
		default:
			logger.Fatalf("modifications: %v", err)
		}
	}
	if db != nil {
		fromDB, skipped, err := db.LoadLog(context.Background())
		if err != nil {
			logger.Fatalf("index db: %v", err)
		}
		logger.Printf("loaded %d modifications from %s (%d skipped)", fromDB.Len(), cfg.Persistence.IndexDB, skipped)
		l.Merge(fromDB)
	}
	return l
}

func saveMods(cfg config.Config, db *indexdb.Store, l *modlog.Log, logger *log.Logger) {
	if path := cfg.Persistence.ModLogPath; path != "" {
		if err := modlogfile.Write(path, l); err != nil {
			logger.Printf("save: %v", err)
		} else {
			logger.Printf("saved %d modifications to %s", l.Len(), path)
		}
	}
	if db != nil {
		if err := db.SaveLog(context.Background(), l); err != nil {
			logger.Printf("index db: %v", err)
		}
	}
}
