// Package sql embeds the paymaster schema so deploy tooling and tests can
// apply it without a checkout of the repo.
package sql

import (
	"embed"
)

//go:embed schema/*.sql
var Content embed.FS
