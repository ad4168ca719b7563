// Package migrations holds the warehouse schema, embedded for golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
