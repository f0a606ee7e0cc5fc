// Package migrations embeds the per-service schema migrations. Each
// service owns its own database and applies only its own directory on
// startup.
package migrations

import "embed"

//go:embed tenant user resource booking
var FS embed.FS
