package netsrv

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/minidb-go/minidb/internal/optimizer"
	"github.com/minidb-go/minidb/internal/sqlfront"
	"github.com/minidb-go/minidb/internal/storage"
)

const banner = "minidb ready. one statement per line; commit/rollback/quit/exit/shutdown are out-of-band.\n"

// maxStatementBytes bounds one line of client input, generous enough for
// an INSERT with many VARCHAR(n) literals.
const maxStatementBytes = 1 << 20

// Session owns one client connection: it reads newline-terminated
// statements, tracks the transaction a BEGIN opened (0 meaning
// auto-commit-per-statement, the storage engine's own calling
// convention), and writes back one rendered Result per line. A
// per-connection state object wrapping a net.Conn, with a plain welcome
// banner in place of a binary handshake/capability negotiation.
type Session struct {
	id              uuid.UUID
	conn            net.Conn
	eng             *storage.Engine
	txn             uint32
	requestShutdown func()
}

func newSession(conn net.Conn, eng *storage.Engine, requestShutdown func()) *Session {
	return &Session{id: uuid.New(), conn: conn, eng: eng, requestShutdown: requestShutdown}
}

// Run serves conn until the client disconnects or issues quit/exit/
// shutdown, rolling back any transaction the session left open — a
// dropped connection must not leave locks held forever.
func (s *Session) Run() {
	defer s.conn.Close()
	defer s.cleanupTxn()

	log := logrus.WithField("session", s.id)
	log.Info("netsrv: client connected")
	defer log.Info("netsrv: client disconnected")

	if _, err := io.WriteString(s.conn, banner); err != nil {
		return
	}

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 4096), maxStatementBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "quit", "exit":
			return
		case "shutdown":
			s.requestShutdown()
			return
		case "commit":
			s.reply(s.commit())
			continue
		case "rollback":
			s.reply(s.rollback())
			continue
		}
		s.reply(s.execute(line))
	}
}

func (s *Session) execute(line string) Result {
	stmt, err := sqlfront.NewParser(line).ParseStatement()
	if err != nil {
		return errorResult(err)
	}
	switch stmt.(type) {
	case sqlfront.Begin:
		return s.begin()
	case sqlfront.Commit:
		return s.commit()
	case sqlfront.Rollback:
		return s.rollback()
	}

	plan, err := optimizer.Optimize(stmt)
	if err != nil {
		return errorResult(err)
	}
	return Dispatch(context.Background(), s.eng, s.txn, plan)
}

func (s *Session) begin() Result {
	if s.txn != 0 {
		return errorResult(fmt.Errorf("a transaction is already active on this session"))
	}
	id, err := s.eng.Begin()
	if err != nil {
		return errorResult(err)
	}
	s.txn = id
	return Result{Message: "transaction started"}
}

func (s *Session) commit() Result {
	if s.txn == 0 {
		return errorResult(fmt.Errorf("no active transaction to commit"))
	}
	txn := s.txn
	s.txn = 0
	if err := s.eng.Commit(txn); err != nil {
		return errorResult(err)
	}
	return Result{Message: "commit"}
}

func (s *Session) rollback() Result {
	if s.txn == 0 {
		return errorResult(fmt.Errorf("no active transaction to roll back"))
	}
	txn := s.txn
	s.txn = 0
	if err := s.eng.Rollback(txn); err != nil {
		return errorResult(err)
	}
	return Result{Message: "rollback"}
}

func (s *Session) cleanupTxn() {
	if s.txn != 0 {
		_ = s.eng.Rollback(s.txn)
		s.txn = 0
	}
}

func (s *Session) reply(r Result) {
	if _, err := io.WriteString(s.conn, r.Render()); err != nil {
		logrus.WithField("session", s.id).WithError(err).Warn("netsrv: write failed")
	}
}
