// Package decisionlog records every instance resolution MultiPaxos
// produces into a SQLite-backed audit table, so a deployment's decided
// history can be inspected independently of any single node's live
// state.
package decisionlog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // blank import: driver registration only

	"github.com/go-paxos/paxoslib/paxos"
)

func nowUnix() int64 { return time.Now().Unix() }

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	instance_num     INTEGER PRIMARY KEY,
	proposal_number  INTEGER NOT NULL,
	proposer_uid     TEXT NOT NULL,
	value            BLOB,
	resolved_at      INTEGER NOT NULL
);`

// Recorder implements multipaxos.ResolutionObserver against a sqlite3
// database file.
type Recorder struct {
	db *sql.DB
}

// Open creates (or reuses) the sqlite3 database at path and ensures the
// decisions table exists.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("decisionlog: opening %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("decisionlog: creating schema in %q: %w", path, err)
	}
	return &Recorder{db: db}, nil
}

// Close closes the underlying database handle.
func (r *Recorder) Close() error { return r.db.Close() }

// OnProposalResolution implements multipaxos.ResolutionObserver,
// recording instanceNum's decided (proposal id, value) with the current
// wall-clock time as resolved_at.
func (r *Recorder) OnProposalResolution(instanceNum uint64, pid paxos.ProposalID, value []byte) error {
	return r.Record(instanceNum, pid, value, nowUnix())
}

// Record inserts (or, for a resolution replayed during recovery,
// overwrites) the decided entry for instanceNum.
func (r *Recorder) Record(instanceNum uint64, pid paxos.ProposalID, value []byte, resolvedAt int64) error {
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO decisions (instance_num, proposal_number, proposer_uid, value, resolved_at)
		 VALUES (?, ?, ?, ?, ?)`,
		instanceNum, pid.Number, pid.UID, value, resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("decisionlog: recording instance %d: %w", instanceNum, err)
	}
	return nil
}

// Decision is one recorded row of the decisions table.
type Decision struct {
	InstanceNum uint64
	ProposalID  paxos.ProposalID
	Value       []byte
	ResolvedAt  int64
}

// Latest returns the highest-numbered recorded decision, or ok=false if
// the log is empty.
func (r *Recorder) Latest() (d Decision, ok bool, err error) {
	row := r.db.QueryRow(
		`SELECT instance_num, proposal_number, proposer_uid, value, resolved_at
		 FROM decisions ORDER BY instance_num DESC LIMIT 1`)
	d, err = scanDecision(row)
	if err == sql.ErrNoRows {
		return Decision{}, false, nil
	}
	if err != nil {
		return Decision{}, false, fmt.Errorf("decisionlog: querying latest: %w", err)
	}
	return d, true, nil
}

// Range returns every recorded decision with instance_num in [from, to),
// ordered ascending.
func (r *Recorder) Range(from, to uint64) ([]Decision, error) {
	rows, err := r.db.Query(
		`SELECT instance_num, proposal_number, proposer_uid, value, resolved_at
		 FROM decisions WHERE instance_num >= ? AND instance_num < ? ORDER BY instance_num ASC`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("decisionlog: querying range [%d,%d): %w", from, to, err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		d, err := scanDecisionRows(rows)
		if err != nil {
			return nil, fmt.Errorf("decisionlog: scanning row in range [%d,%d): %w", from, to, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDecision(row *sql.Row) (Decision, error) {
	return scanAny(row)
}

func scanDecisionRows(rows *sql.Rows) (Decision, error) {
	return scanAny(rows)
}

func scanAny(s scanner) (Decision, error) {
	var d Decision
	if err := s.Scan(&d.InstanceNum, &d.ProposalID.Number, &d.ProposalID.UID, &d.Value, &d.ResolvedAt); err != nil {
		return Decision{}, err
	}
	return d, nil
}
