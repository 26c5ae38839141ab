// Package db provides the embedded database migrations.
package db

import "embed"

// Migrations holds the golang-migrate files applied on startup.
//
//go:embed migrations/*.sql
var Migrations embed.FS
