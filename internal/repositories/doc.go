// Package repositories implements durable backends for session records.
//
// Key Implementations:
//   - [SessionRepository] : SQLite rows in the sessions table created by the embedded migrations
//   - [RedisSessionStore] : JSON values under a key prefix, expired by Redis TTLs
//
// Both satisfy session.Store. Missing and expired sessions are reported as
// [shared.ErrSessionNotFound] so callers can start a fresh session instead of failing.
//
// The SQLite repository stores timestamps as unix seconds and relies on
// [SessionRepository.DeleteExpired] (run by `spotstats sessions prune` and the
// server's janitor) to reclaim expired rows.
package repositories
