// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package db archives raw cycle count samples in a SQL database, so
// that runs can be compared after their profile files are gone.
package db

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/tlsbench/cyclestat/aggregate"
	"github.com/tlsbench/cyclestat/locate"
)

// DB is a sample archive backed by a SQL database. It's safe for
// concurrent use by multiple goroutines.
type DB struct {
	sql *sql.DB // underlying database connection
	// prepared statements
	insertSample *sql.Stmt
}

// OpenSQL creates a DB backed by a SQL database. The parameters are
// the same as the parameters for sql.Open. Only mysql, sqlite3 (cgo)
// and sqlite (pure Go) are explicitly supported; other database engines
// will receive MySQL query syntax which may or may not be compatible.
func OpenSQL(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if hook := openHooks[driverName]; hook != nil {
		if err := hook(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	d := &DB{sql: db}
	if err := d.createTables(driverName); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

var openHooks = make(map[string]func(*sql.DB) error)

// RegisterOpenHook registers a hook to be called after opening a
// connection to driverName. It must be called from an init function.
func RegisterOpenHook(driverName string, hook func(*sql.DB) error) {
	openHooks[driverName] = hook
}

// createTmpl is the template used to prepare the CREATE statements
// for the database. It is evaluated with . as a map whose "sqlite"
// entry is set for either SQLite driver.
var createTmpl = template.Must(template.New("create").Parse(`
CREATE TABLE IF NOT EXISTS Runs (
	RunID {{if .sqlite}}INTEGER PRIMARY KEY AUTOINCREMENT{{else}}SERIAL PRIMARY KEY AUTO_INCREMENT{{end}},
	Day CHAR(8) NOT NULL,
	Seq INT NOT NULL,
	Label VARCHAR(255),
	Created BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS Samples (
	RunID BIGINT UNSIGNED,
	SampleID BIGINT UNSIGNED,
	Role VARCHAR(16) NOT NULL,
	Func VARCHAR(255) NOT NULL,
	Suite INT NOT NULL,
	Sent INT,
	Recv INT,
	HasSizes BOOLEAN,
	Cycles BIGINT NOT NULL,
	Source VARCHAR(4096),
{{if not .sqlite}}
	Index (Func(100), Suite),
{{end}}
	PRIMARY KEY (RunID, SampleID),
	FOREIGN KEY (RunID) REFERENCES Runs(RunID) ON UPDATE CASCADE ON DELETE CASCADE
);
{{if .sqlite}}
CREATE INDEX IF NOT EXISTS SamplesFuncSuite ON Samples(Func, Suite);
{{end}}
`))

// createTables creates any missing tables on the connection in
// db.sql. driverName is the same driver name passed to sql.Open and
// is used to select the correct syntax.
func (db *DB) createTables(driverName string) error {
	var buf bytes.Buffer
	dialect := map[string]bool{"sqlite": driverName == "sqlite3" || driverName == "sqlite"}
	if err := createTmpl.Execute(&buf, dialect); err != nil {
		return err
	}
	for _, q := range strings.Split(buf.String(), ";") {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.sql.Exec(q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// prepareStatements calls db.sql.Prepare on reusable SQL statements.
func (db *DB) prepareStatements() error {
	var err error
	db.insertSample, err = db.sql.Prepare("INSERT INTO Samples(RunID, SampleID, Role, Func, Suite, Sent, Recv, HasSizes, Cycles, Source) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	return err
}

// now is a hook for testing
var now = time.Now

// A Run is one archived aggregation pass.
type Run struct {
	// ID is the numeric primary key of the run.
	ID int64

	// Name identifies the run as "YYYYMMDD.n", where n counts the
	// runs archived that day, starting at 1.
	Name string

	Label   string
	Created time.Time

	// sampleid is the index of the next sample to insert.
	sampleid int64
	db       *DB
}

// NewRun records a new run with the given label.
func (db *DB) NewRun(ctx context.Context, label string) (_ *Run, err error) {
	created := now().UTC()
	day := created.Format("20060102")

	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(Seq), 0) FROM Runs WHERE Day = ?", day).Scan(&seq); err != nil {
		return nil, err
	}
	seq++
	res, err := tx.ExecContext(ctx, "INSERT INTO Runs(Day, Seq, Label, Created) VALUES (?, ?, ?, ?)", day, seq, label, created.Unix())
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Run{
		ID:      id,
		Name:    fmt.Sprintf("%s.%d", day, seq),
		Label:   label,
		Created: time.Unix(created.Unix(), 0).UTC(),
		db:      db,
	}, nil
}

// A Record is one archived sample.
type Record struct {
	Role  locate.Role
	Func  string
	Suite int
	aggregate.Sample
}

// InsertSamples archives every sample in set under role, in a single
// transaction. Samples are inserted by function name, then ciphersuite
// id, then collection order.
func (r *Run) InsertSamples(ctx context.Context, role locate.Role, set aggregate.SampleSet) (err error) {
	tx, err := r.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	next := r.sampleid
	defer func() {
		if err != nil {
			tx.Rollback()
		} else if err = tx.Commit(); err == nil {
			r.sampleid = next
		}
	}()

	stmt := tx.StmtContext(ctx, r.db.insertSample)
	for _, fn := range set.Funcs() {
		for _, suite := range set.Suites(fn) {
			for _, x := range set[fn][suite] {
				if _, err := stmt.ExecContext(ctx, r.ID, next, role.String(), fn, suite, x.Sent, x.Recv, x.HasSizes, x.Cycles, x.Source); err != nil {
					return fmt.Errorf("insert sample %s/%d: %w", fn, suite, err)
				}
				next++
			}
		}
	}
	return nil
}

// Samples returns the samples archived for the run with the given ID,
// in insertion order.
func (db *DB) Samples(ctx context.Context, runID int64) ([]Record, error) {
	rows, err := db.sql.QueryContext(ctx, "SELECT Role, Func, Suite, Sent, Recv, HasSizes, Cycles, Source FROM Samples WHERE RunID = ? ORDER BY SampleID", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var role string
		if err := rows.Scan(&role, &rec.Func, &rec.Suite, &rec.Sent, &rec.Recv, &rec.HasSizes, &rec.Cycles, &rec.Source); err != nil {
			return nil, err
		}
		if rec.Role, err = locate.ParseRole(role); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SampleSet reassembles the archived samples of a run into one set per
// role.
func (db *DB) SampleSet(ctx context.Context, runID int64) (map[locate.Role]aggregate.SampleSet, error) {
	recs, err := db.Samples(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make(map[locate.Role]aggregate.SampleSet)
	for _, rec := range recs {
		set := out[rec.Role]
		if set == nil {
			set = make(aggregate.SampleSet)
			out[rec.Role] = set
		}
		set.Add(rec.Func, rec.Suite, rec.Sample)
	}
	return out, nil
}

// CountRuns returns the number of archived runs.
func (db *DB) CountRuns(ctx context.Context) (int, error) {
	var n int
	err := db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM Runs").Scan(&n)
	return n, err
}

// Close closes the database connections, releasing any open resources.
func (db *DB) Close() error {
	if err := db.insertSample.Close(); err != nil {
		return err
	}
	return db.sql.Close()
}
