//go:build sqlite_vec
// +build sqlite_vec

package storage

// Compiled with CGO and the sqlite_vec tag. Similarity ranking runs inside
// SQLite through the sqlite-vec extension's vec_distance_cosine.
//
//   CGO_ENABLED=1 go build -tags "sqlite_vec" ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
