// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInMemory(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, db.InMemory())
	assert.Equal(t, "", db.Path())

	ctx := context.Background()
	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("session/a/meta"), []byte("value"))
	}))

	got, err := db.Get(ctx, []byte("session/a/meta"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	_, err = db.Get(ctx, []byte("session/missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = time.Hour

	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.WithTxn(context.Background(), func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}))
	require.NoError(t, db.Close())

	db2, err := Open(cfg)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.Get(context.Background(), []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, dir, db2.Path())
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestWithTxn_ContextCancelled(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("key"), []byte("value"))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestWithTxn_RollbackOnError(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set([]byte("rollback-key"), []byte("x")); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = db.Get(ctx, []byte("rollback-key"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScanAndDeletePrefix(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		for _, k := range []string{"session/b/meta", "session/a/meta", "session/a/graph", "other/x"} {
			if err := txn.Set([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	var keys []string
	require.NoError(t, db.ScanPrefix(ctx, []byte("session/"), func(k, v []byte) error {
		assert.Equal(t, k, v)
		keys = append(keys, string(k))
		return nil
	}))
	assert.True(t, sort.StringsAreSorted(keys))
	assert.Equal(t, []string{"session/a/graph", "session/a/meta", "session/b/meta"}, keys)

	require.NoError(t, db.DeletePrefix(ctx, []byte("session/a/")))
	keys = keys[:0]
	require.NoError(t, db.ScanPrefix(ctx, []byte("session/"), func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	}))
	assert.Equal(t, []string{"session/b/meta"}, keys)

	_, err = db.Get(ctx, []byte("other/x"))
	assert.NoError(t, err)
}

func TestGCRunner(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewGCRunner(nil, time.Second, 0.5, nil)
	assert.ErrorContains(t, err, "db must not be nil")

	_, err = NewGCRunner(db.DB, 0, 0.5, nil)
	assert.ErrorContains(t, err, "interval must be positive")

	_, err = NewGCRunner(db.DB, time.Second, 1.5, nil)
	assert.ErrorContains(t, err, "ratio must be between 0 and 1")

	runner, err := NewGCRunner(db.DB, 10*time.Millisecond, 0.5, nil)
	require.NoError(t, err)
	runner.Start()
	time.Sleep(30 * time.Millisecond)
	runner.Stop()
}
