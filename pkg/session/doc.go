// Package session owns session identity: creation, lookup, activity
// touch, metadata reset, deactivation and deletion.
//
// Invariants:
// - Session tokens are unique; duplicate creation fails with ErrConflict.
// - last_activity never moves backwards from the store's point of view;
//   concurrent touches converge to last-writer-wins on wall-clock time.
// - Deleting a session removes all of its events in the same transaction.
//
// Usage:
//
//	db, _ := store.Open("/tmp/playground.db", logger)
//	sessions := session.NewStore(db, logger)
//	s, _ := sessions.GetOrCreate(ctx, "some-token")
//	_ = s
package session
