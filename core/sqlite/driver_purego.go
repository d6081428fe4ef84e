//go:build !cgo_sqlite

// Pure Go SQLite driver using modernc.org/sqlite. This is the default.
package sqlite

import (
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	driverName    = "sqlite"
	driverType    = "purego"
	driverPackage = "modernc.org/sqlite"
)
