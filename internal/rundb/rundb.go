// Package rundb records finished acquisition runs in a ClickHouse database.
// Recording is best-effort: an unreachable or unconfigured database never
// stalls or fails an acquisition.
package rundb

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

const databaseName = "squall" // official SQL name of the database

// RunMessage is the information for one row of the squall.runs table.
type RunMessage struct {
	ID               string
	Hostname         string
	Version          string
	ClockSource      string
	SampleRate       float64 // MS/s
	SamplesPerRecord int
	RecordsPerBuffer int
	BuffersCompleted int64
	BytesTransferred int64
	Start            time.Time
	End              time.Time
}

// Connection wraps one ClickHouse connection plus the channel feeding it.
type Connection struct {
	conn   clickhouse.Conn
	err    error
	runmsg chan *RunMessage
}

// IsConnected reports whether run messages will actually reach a server.
func (db *Connection) IsConnected() bool {
	return db != nil && db.conn != nil && db.err == nil
}

// Dummy returns a connection that silently discards everything, for use
// when no database is configured.
func Dummy() *Connection {
	return &Connection{err: fmt.Errorf("dummy connection")}
}

// Start opens the connection (credentials from SQUALL_DB_USER and
// SQUALL_DB_PASSWORD, server from SQUALL_DB_ADDR or localhost:9000) and
// launches the goroutine that handles messages until abort closes.
func Start(abort <-chan struct{}) *Connection {
	db := connect()
	if db.IsConnected() {
		go db.handleConnection(abort)
	}
	return db
}

func connect() *Connection {
	db := &Connection{runmsg: make(chan *RunMessage, 4)}
	user := os.Getenv("SQUALL_DB_USER")
	if user == "" {
		db.err = fmt.Errorf("SQUALL_DB_USER is not set")
		return db
	}
	addr := os.Getenv("SQUALL_DB_ADDR")
	if addr == "" {
		addr = "localhost:9000"
	}
	opt := &clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: databaseName,
			Username: user,
			Password: os.Getenv("SQUALL_DB_PASSWORD"),
		},
		DialTimeout: 5 * time.Second,
	}
	db.conn, db.err = clickhouse.Open(opt)
	return db
}

// Ping checks that the server answers.
func (db *Connection) Ping() error {
	if !db.IsConnected() {
		return fmt.Errorf("database is not connected: %v", db.err)
	}
	v, err := db.conn.ServerVersion()
	if err != nil {
		return err
	}
	fmt.Printf("ClickHouse server is alive. Version:\n%s\n", v)
	return nil
}

// Record queues one run row. Non-blocking: if the writer is behind, the
// row is dropped rather than stalling an acquisition drain.
func (db *Connection) Record(msg *RunMessage) {
	if !db.IsConnected() {
		return
	}
	select {
	case db.runmsg <- msg:
	default:
	}
}

func (db *Connection) handleConnection(abort <-chan struct{}) {
	for {
		select {
		case <-abort:
			db.conn.Close()
			return
		case msg := <-db.runmsg:
			db.insert(msg)
		}
	}
}

func (db *Connection) insert(msg *RunMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := db.conn.Exec(ctx, `INSERT INTO runs
		(id, hostname, version, clock_source, sample_rate, samples_per_record,
		 records_per_buffer, buffers_completed, bytes_transferred, start, end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Hostname, msg.Version, msg.ClockSource, msg.SampleRate,
		msg.SamplesPerRecord, msg.RecordsPerBuffer, msg.BuffersCompleted,
		msg.BytesTransferred, msg.Start, msg.End)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rundb: could not insert run %s: %v\n", msg.ID, err)
	}
}
