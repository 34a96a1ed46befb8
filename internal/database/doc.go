// Package database opens the connections behind the lookup store.
//
// Two backends are supported:
//   - SQLite: a single embedded file, the default for local ingestion
//   - PostgreSQL: a shared server for deployments with several consumers
package database
