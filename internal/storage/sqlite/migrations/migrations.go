// Package migrations embeds the SQL schema files for the SQLite stores.
package migrations

import "embed"

// EventsFS holds the event-journal schema.
//
//go:embed events/*.sql
var EventsFS embed.FS

// ProjectionsFS holds the read-model schema.
//
//go:embed projections/*.sql
var ProjectionsFS embed.FS
