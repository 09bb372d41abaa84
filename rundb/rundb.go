// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rundb records accelerator control sequence runs into a
// MySQL run database.
package rundb // import "github.com/go-daq/accel/rundb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var drvName = "mysql"

// Run is one recorded control sequence run.
type Run struct {
	ID        int64
	Device    string
	Graph     string
	Status    string
	Raw       uint32
	Polls     int
	ElapsedNS int64
}

// DB exposes convenience methods to record and retrieve accelerator
// runs from the run database.
type DB struct {
	db  *sql.DB
	dsn string
}

// Open opens a connection to the run database at dsn, e.g.
// "user:s3cr3t@tcp(localhost)/accel".
func Open(dsn string) (*DB, error) {
	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("rundb: could not open run db: %w", err)
	}

	err = ping(db)
	if err != nil {
		return nil, fmt.Errorf("rundb: could not ping run db: %w", err)
	}

	return &DB{db: db, dsn: dsn}, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.db.Close()
}

// AddRun inserts a run record and returns its run-id.
func (db *DB) AddRun(ctx context.Context, run Run) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := db.db.ExecContext(
		ctx,
		"INSERT INTO runs (device, graph, status, raw, polls, elapsed_ns) VALUES (?, ?, ?, ?, ?, ?)",
		run.Device, run.Graph, run.Status, run.Raw, run.Polls, run.ElapsedNS,
	)
	if err != nil {
		return 0, fmt.Errorf("rundb: could not insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("rundb: could not get run-id: %w", err)
	}

	return id, nil
}

// LastRunID returns the run-id of the most recent run.
func (db *DB) LastRunID(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var id int64
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT id FROM runs ORDER BY id DESC LIMIT 1",
	)
	if err != nil {
		return id, fmt.Errorf("rundb: could not query last run-id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&id)
		if err != nil {
			return id, fmt.Errorf("rundb: could not get last run-id value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return id, fmt.Errorf("rundb: could not scan db for last run-id: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return id, fmt.Errorf("rundb: context error while retrieving last run-id: %w", err)
	}

	return id, nil
}

// Runs returns the n most recent runs, newest first.
func (db *DB) Runs(ctx context.Context, n int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var runs []Run
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT id, device, graph, status, raw, polls, elapsed_ns FROM runs ORDER BY id DESC LIMIT ?",
		n,
	)
	if err != nil {
		return runs, fmt.Errorf("rundb: could not query runs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var run Run
		err = rows.Scan(
			&run.ID, &run.Device, &run.Graph,
			&run.Status, &run.Raw, &run.Polls, &run.ElapsedNS,
		)
		if err != nil {
			return runs, fmt.Errorf("rundb: could not scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return runs, fmt.Errorf("rundb: could not scan db for runs: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return runs, fmt.Errorf("rundb: context error while retrieving runs: %w", err)
	}

	return runs, nil
}
