// Package migrations carries the slot engine schema in the binary.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
