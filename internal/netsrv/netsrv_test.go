package netsrv

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/minidb-go/minidb/internal/bufferpool"
	"github.com/minidb-go/minidb/internal/catalog"
	"github.com/minidb-go/minidb/internal/diskmgr"
	"github.com/minidb-go/minidb/internal/lockmgr"
	"github.com/minidb-go/minidb/internal/storage"
	"github.com/minidb-go/minidb/internal/txnmgr"
	"github.com/minidb-go/minidb/internal/wal"
)

func newTestEngine(t *testing.T) *storage.Engine {
	dir := t.TempDir()
	disk, err := diskmgr.Open(filepath.Join(dir, "db.dat"))
	require.NoError(t, err)
	t.Cleanup(func() { disk.Close() })
	w, err := wal.Open(filepath.Join(dir, "db.wal"))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	pool := bufferpool.New(disk)
	cat := catalog.New(pool)
	require.NoError(t, cat.Bootstrap())
	locks := lockmgr.New(time.Second)
	txns := txnmgr.New(w, locks, pool)
	return storage.New(disk, pool, cat, locks, txns, w)
}

func startTestServer(t *testing.T) net.Conn {
	srv, err := NewServer(newTestEngine(t), "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		srv.Shutdown()
		<-done
	})

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readReply reads lines until it sees the "(N row...)" /
// one-line status terminator this protocol ends every response with.
func readReply(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var sb strings.Builder
	for {
		line, err := r.ReadString('\n')
		sb.WriteString(line)
		if err != nil {
			require.NoError(t, err)
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")") {
			return sb.String()
		}
		if trimmed != "" && !strings.HasPrefix(trimmed, "|") && !strings.HasPrefix(trimmed, "+") {
			// A plain status message (e.g. "table created") is one line.
			return sb.String()
		}
	}
}

func TestCreateInsertSelectOverTCP(t *testing.T) {
	conn := startTestServer(t)
	r := bufio.NewReader(conn)

	_, err := r.ReadString('\n') // banner
	require.NoError(t, err)

	send := func(stmt string) string {
		_, err := conn.Write([]byte(stmt + "\n"))
		require.NoError(t, err)
		return readReply(t, r)
	}

	out := send("CREATE TABLE t (id INT, name VARCHAR(10))")
	require.Contains(t, out, "table created")

	out = send("INSERT INTO t VALUES (1, 'a')")
	require.Contains(t, out, "inserted")

	out = send("INSERT INTO t VALUES (2, 'b')")
	require.Contains(t, out, "inserted")

	out = send("SELECT * FROM t")
	require.Contains(t, out, "1")
	require.Contains(t, out, "a")
	require.Contains(t, out, "2")
	require.Contains(t, out, "b")
	require.Contains(t, out, "(2 rows)")

	out = send("DELETE FROM t WHERE id = 1")
	require.Contains(t, out, "1 record(s) deleted")

	out = send("SELECT * FROM t")
	require.NotContains(t, out, " a ")
	require.Contains(t, out, "(1 row)")
}

func TestUnknownStatementRendersErrorRow(t *testing.T) {
	conn := startTestServer(t)
	r := bufio.NewReader(conn)
	_, err := r.ReadString('\n') // banner
	require.NoError(t, err)

	_, err = conn.Write([]byte("SELECT * FROM nope\n"))
	require.NoError(t, err)
	out := readReply(t, r)
	require.Contains(t, out, "Error")
}

func TestExplicitTransactionCommit(t *testing.T) {
	conn := startTestServer(t)
	r := bufio.NewReader(conn)
	_, err := r.ReadString('\n')
	require.NoError(t, err)

	send := func(stmt string) string {
		_, err := conn.Write([]byte(stmt + "\n"))
		require.NoError(t, err)
		return readReply(t, r)
	}

	require.Contains(t, send("CREATE TABLE t (id INT)"), "table created")
	require.Contains(t, send("BEGIN"), "transaction started")
	require.Contains(t, send("INSERT INTO t VALUES (1)"), "inserted")
	require.Contains(t, send("commit"), "commit")
	require.Contains(t, send("SELECT * FROM t"), "(1 row)")
}
