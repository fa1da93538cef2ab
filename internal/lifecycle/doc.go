// Package lifecycle opens versioned SQLite databases and guarantees that a
// named collection (a key/value table) exists before anyone uses them.
//
// # Files
//
// A database called "sounds" in directory dir is made of:
//   - dir/sounds.db: the SQLite file; PRAGMA user_version is the database version
//   - dir/sounds.db.lock: advisory lock file (shared while connected, exclusive while upgrading)
//   - dir/sounds.db.upgrade: present while some connection waits to upgrade
//
// # Opening
//
// Open reads the current version without asking for one. A brand-new
// database (version 0) is upgraded to version 1 and the collection is
// created in that upgrade. If the database already exists but lacks the
// collection, the connection is closed and the database reopened at
// version+1, creating the collection during the upgrade. A collection that
// is still missing after that is a fatal SCHEMA_INCONSISTENT error.
//
// # Coordination
//
// Every open Conn holds a shared lock on the lock file. An upgrader
// publishes an upgrade request (in-process broadcast plus the .upgrade
// file, polled by connections in other processes) and waits for the
// exclusive lock. Connections below the requested version close themselves
// when they see the request; from then on every use reports a
// VERSION_CHANGED error. If the exclusive lock cannot be taken within
// Options.BlockedTimeout the upgrade fails with BLOCKED.
//
// # Database Configuration
//
//   - WAL mode: readers do not block the writer
//   - synchronous=NORMAL
//   - busy_timeout from Options.BusyTimeout
//   - transactions start with BEGIN IMMEDIATE
package lifecycle
