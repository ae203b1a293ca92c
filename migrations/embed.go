// Package migrations compiles the *.sql schema files into the binary
// and hands them to the database package at init. A blank import is
// all a binary needs:
//
//	import _ "github.com/icesealed/wyvern/migrations"
package migrations

import (
	"embed"

	"github.com/icesealed/wyvern/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "." // embedded at the package root
}
