// Package engine is a thin trampoline from network layer to storage API:
// it opens the disk file and WAL, runs crash recovery once before
// anything else touches a page, constructs the buffer pool/catalog/lock/
// transaction managers, and hands callers a ready storage.Engine. The
// startup order here (conf.NewCfg().Load -> logger.InitLogger -> open
// the storage stack) mirrors a typical server's own wiring sequence,
// except opening the network listener is a separate, later step
// (internal/netsrv).
package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/minidb-go/minidb/internal/bufferpool"
	"github.com/minidb-go/minidb/internal/catalog"
	"github.com/minidb-go/minidb/internal/diskmgr"
	"github.com/minidb-go/minidb/internal/errs"
	"github.com/minidb-go/minidb/internal/lockmgr"
	"github.com/minidb-go/minidb/internal/recovery"
	"github.com/minidb-go/minidb/internal/storage"
	"github.com/minidb-go/minidb/internal/txnmgr"
	"github.com/minidb-go/minidb/internal/wal"
	"github.com/minidb-go/minidb/server/conf"
)

// Engine bundles the process-global singletons and the public storage
// API built on top of them. One Engine is opened per server process.
type Engine struct {
	Storage *storage.Engine

	disk  *diskmgr.Manager
	pool  *bufferpool.Pool
	cat   *catalog.Catalog
	locks *lockmgr.Manager
	txns  *txnmgr.Manager
	wal   *wal.Manager

	Recovery recovery.Report
}

// Open opens cfg.DBFile and cfg.WALFile, replays the WAL against the
// buffer pool (ANALYSIS/REDO/UNDO), flushes the reconciled pages,
// bootstraps the catalog from the system pages, and wires the lock and
// transaction managers. Recovery runs to completion before this returns,
// per the storage engine's startup contract: no external request is
// accepted until the dependency chain (disk -> WAL -> buffer pool ->
// catalog -> locks -> transactions -> storage) is fully built and the log
// has been reconciled against the pages. Any failure here is
// RecoveryFailure and fatal to the caller.
func Open(cfg *conf.Cfg) (*Engine, error) {
	disk, err := diskmgr.Open(cfg.DBFile)
	if err != nil {
		return nil, errs.Wrap(errs.RecoveryFailure, "open database file", err)
	}
	w, err := wal.Open(cfg.WALFile)
	if err != nil {
		disk.Close()
		return nil, errs.Wrap(errs.RecoveryFailure, "open WAL file", err)
	}
	w.SetCompressImages(cfg.WALCompressImages)

	pool := bufferpool.New(disk)

	report, err := recovery.Run(pool, w)
	if err != nil {
		w.Close()
		disk.Close()
		return nil, errs.Wrap(errs.RecoveryFailure, "replay write-ahead log", err)
	}
	logrus.WithFields(logrus.Fields{
		"records_scanned": report.RecordsScanned,
		"pages_redone":    report.PagesRedone,
		"txns_undone":     len(report.TransactionsUndo),
	}).Info("engine: recovery complete")

	if err := pool.FlushAll(); err != nil {
		w.Close()
		disk.Close()
		return nil, errs.Wrap(errs.RecoveryFailure, "flush reconciled pages", err)
	}

	cat := catalog.New(pool)
	if err := cat.Bootstrap(); err != nil {
		w.Close()
		disk.Close()
		return nil, errs.Wrap(errs.RecoveryFailure, "bootstrap catalog", err)
	}

	locks := lockmgr.New(cfg.LockTimeout)
	txns := txnmgr.New(w, locks, pool)
	store := storage.New(disk, pool, cat, locks, txns, w)

	return &Engine{
		Storage:  store,
		disk:     disk,
		pool:     pool,
		cat:      cat,
		locks:    locks,
		txns:     txns,
		wal:      w,
		Recovery: report,
	}, nil
}

// Checkpoint flushes every dirty frame and writes a CHECKPOINT WAL
// record — an operator-initiated optimization hint for a future
// recovery's start point, not required for correctness.
func (e *Engine) Checkpoint() error {
	if err := e.pool.FlushAll(); err != nil {
		return err
	}
	_, err := e.wal.LogCheckpoint()
	return err
}

// Shutdown flushes all dirty pages, checkpoints, and closes the WAL and
// database files: flag the stop, flush, then close. The WAL is not
// truncated, so the next open's recovery still replays the whole log.
func (e *Engine) Shutdown() error {
	if err := e.pool.FlushAll(); err != nil {
		return err
	}
	if _, err := e.wal.LogCheckpoint(); err != nil {
		return err
	}
	if err := e.wal.Close(); err != nil {
		return err
	}
	return e.disk.Close()
}
