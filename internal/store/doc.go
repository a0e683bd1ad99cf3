// Package store provides persistent storage for the chat gateway using SQLite.
//
// # Architecture
//
// A single Store interface covers every persisted entity. SQLiteStore
// implements it on top of database/sql and can run on either the pure-Go
// modernc.org/sqlite driver ("sqlite", the default) or the cgo
// github.com/mattn/go-sqlite3 driver ("sqlite3"). MockStore is an in-memory
// implementation for tests that also supports failure injection.
//
// # Data Models
//
//   - User: account, display name and argon2id password hash
//   - Chatroom: named room; the creator is its first member
//   - PrivateSession: one row per unordered pair of accounts
//   - MessageRecord: a message in a room or a private session
//
// Friendships are mutual and stored as two directed rows so that lookups
// from either side hit the primary key.
//
// # Message IDs
//
// Messages share one AUTOINCREMENT sequence, so IDs increase monotonically
// within every conversation. History is paged newest first by ID.
//
// # Error Handling
//
//   - ErrNotFound: the requested entity does not exist
//   - ErrDuplicate: an insert collided with a unique key
package store
