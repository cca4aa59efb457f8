// Package migrations bundles the chat schema as SQL files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
