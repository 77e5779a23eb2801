// Package db provides the embedded database schema and the default menu.
package db

import _ "embed"

// Schema contains the DDL statements for the menu tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Menu is the default menu served when no other catalog source is configured.
//
//go:embed seed/menu.json
var Menu []byte
