// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dbtest opens empty sample archives for tests.
package dbtest

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"flag"
	"fmt"
	"testing"

	"github.com/tlsbench/cyclestat/storage/db"
)

var (
	mysqlDSN = flag.String("mysql", "", "run database tests against the MySQL server at this DSN (e.g. root:@tcp(localhost)/) instead of in-memory SQLite")
	cloudsql = flag.String("cloudsql", "", "run database tests against this Cloud SQL `instance` instead of in-memory SQLite")
)

// serverDSN returns the DSN prefix of the MySQL server selected by the
// flags, or "" to use SQLite.
func serverDSN() string {
	if *cloudsql != "" {
		return fmt.Sprintf("root:@cloudsql(%s)/", *cloudsql)
	}
	return *mysqlDSN
}

// createEmptyMySQLDB makes a new, empty database for the test.
func createEmptyMySQLDB(t *testing.T, prefix string) (dsn string, cleanup func()) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		t.Fatal(err)
	}
	name := "cyclestat_test_" + hex.EncodeToString(buf)

	conn, err := sql.Open("mysql", prefix)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec(fmt.Sprintf("CREATE DATABASE `%s`", name)); err != nil {
		conn.Close()
		t.Fatal(err)
	}
	t.Logf("Using database %q", name)

	return prefix + name, func() {
		if _, err := conn.Exec(fmt.Sprintf("DROP DATABASE `%s`", name)); err != nil {
			t.Error(err)
		}
		conn.Close()
	}
}

// NewDB makes a connection to a testing database, either in-memory
// sqlite3 or MySQL depending on the -mysql and -cloudsql flags. The
// database is closed and, for MySQL, dropped when the test finishes.
func NewDB(t *testing.T) *db.DB {
	t.Helper()
	driverName, dataSourceName := "sqlite3", ":memory:"
	var dropDB func()
	if prefix := serverDSN(); prefix != "" {
		driverName = "mysql"
		dataSourceName, dropDB = createEmptyMySQLDB(t, prefix)
	}
	d, err := db.OpenSQL(driverName, dataSourceName)
	if err != nil {
		if dropDB != nil {
			dropDB()
		}
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
		if dropDB != nil {
			dropDB()
		}
	})

	// Make sure the database really is empty.
	runs, err := d.CountRuns(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if runs != 0 {
		t.Fatalf("found %d row(s) in Runs, want 0", runs)
	}
	return d
}
