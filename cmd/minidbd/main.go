// Command minidbd is the server entry point: it loads configuration,
// opens the storage engine (running crash recovery to completion before
// anything else happens), starts the TCP listener, and shuts down
// cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/minidb-go/minidb/internal/engine"
	"github.com/minidb-go/minidb/internal/netsrv"
	"github.com/minidb-go/minidb/logger"
	"github.com/minidb-go/minidb/server/conf"
	"github.com/minidb-go/minidb/util"
)

const banner = `
******************************************************************************
 minidb server - single-host relational storage engine
 -- help           show flags
 -- configPath     ini file with a [minidb] section (bind-address, port,
                    db_file, wal_file, buffer_pool_frames, lock_timeout,
                    wal_compress_images, log_level, log_error, log_infos)
******************************************************************************
`

func main() {
	var configPath string
	var port int
	var dbFile string
	var walFile string
	flag.StringVar(&configPath, "configPath", "", "path to an ini config file")
	flag.IntVar(&port, "port", 0, "TCP port to listen on (overrides config)")
	flag.StringVar(&dbFile, "db_file", "", "data file path (overrides config)")
	flag.StringVar(&walFile, "wal_file", "", "write-ahead log file path (overrides config)")
	flag.Parse()

	// Positional [port [db_file]] form, same as postgres's postmaster:
	// minidbd 5433 mydb.dat. A named -port/-db_file flag takes precedence
	// over its positional counterpart, the same way either takes
	// precedence over the config file.
	if rest := flag.Args(); len(rest) > 0 {
		if port == 0 {
			p, err := strconv.Atoi(rest[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "minidbd: invalid port %q: %v\n", rest[0], err)
				os.Exit(1)
			}
			port = p
		}
		if len(rest) > 1 && dbFile == "" {
			dbFile = rest[1]
		}
	}

	fmt.Print(banner)

	cfg := conf.NewCfg().Load(&conf.CommandLineArgs{
		ConfigPath: configPath,
		Port:       port,
		DBFile:     dbFile,
		WALFile:    walFile,
	})

	if err := logger.InitLogger(logger.LogConfig{
		ErrorLogPath: cfg.LogError,
		InfoLogPath:  cfg.LogInfos,
		LogLevel:     cfg.LogLevel,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "minidbd: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	for _, f := range []string{cfg.DBFile, cfg.WALFile} {
		if dir := filepath.Dir(f); dir != "." && dir != "" {
			if err := util.EnsureDir(filepath.Dir(dir), filepath.Base(dir)); err != nil {
				logger.Errorf("failed to create directory for %s: %v", f, err)
				os.Exit(1)
			}
		}
	}

	logger.Infof("opening engine: db_file=%s wal_file=%s", cfg.DBFile, cfg.WALFile)
	eng, err := engine.Open(cfg)
	if err != nil {
		logger.Errorf("engine startup failed: %v", err)
		os.Exit(1)
	}
	logger.Infof("recovery complete: scanned=%d redone=%d undone=%d",
		eng.Recovery.RecordsScanned, eng.Recovery.PagesRedone, len(eng.Recovery.TransactionsUndo))

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	srv, err := netsrv.NewServer(eng.Storage, addr)
	if err != nil {
		logger.Errorf("failed to bind %s: %v", addr, err)
		os.Exit(1)
	}
	logger.Infof("listening on %s", srv.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining connections")
		srv.Shutdown()
		<-serveErr
	case err := <-serveErr:
		if err != nil {
			logger.Errorf("listener stopped unexpectedly: %v", err)
		}
	}

	if err := eng.Shutdown(); err != nil {
		logger.Errorf("engine shutdown failed: %v", err)
		os.Exit(1)
	}
	logger.Info("minidbd stopped cleanly")
}
