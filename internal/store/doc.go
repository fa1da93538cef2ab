// Package store provides the Permanent Store: a persistent key/value cache
// bound to one collection of one SQLite database.
//
// A Store is created with New and starts opening its database in the
// background; every operation first waits for that single initialization.
//
// # Failure Policy
//
//   - Set returns every failure to the caller.
//   - Get, Has, Delete, Clear, Keys, Values, Entries and Count never fail:
//     an error is logged at WARN and reported as "not found", false or empty.
//
// # Ordering
//
//   - A returned mutation (Set, Delete, Clear) has committed.
//   - Concurrent calls that do not wait for each other may commit in any order.
//   - Keys, Values and Entries return a snapshot ordered by key (binary collation).
//
// # Invalidation
//
// When another connection upgrades the database, the Store's connection
// closes itself. The Store does not reconnect: later writes fail with a
// lifecycle VERSION_CHANGED error and reads degrade to misses.
package store
