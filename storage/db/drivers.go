// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package db

import (
	"database/sql"

	// The cloudsql dialer lets mysql data source names address a
	// Cloud SQL instance as user:pass@cloudsql(project:region:instance)/db.
	_ "github.com/GoogleCloudPlatform/cloudsql-proxy/proxy/dialers/mysql"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

func init() {
	// Each connection to an in-memory SQLite database sees its own
	// empty database, so SQLite is limited to one connection.
	oneConn := func(db *sql.DB) error {
		db.SetMaxOpenConns(1)
		return nil
	}
	RegisterOpenHook("sqlite3", oneConn)
	RegisterOpenHook("sqlite", oneConn)
}
