// Package board owns the canonical discussion state: threaded messages,
// per-message reactions, tag associations, and reports. It exposes one Store
// interface with in-memory and Postgres implementations, and a Service that
// enforces authorization and emits notification triggers after mutations.
//
// Consistency rules the implementations must uphold:
//   - reaction upsert/clear for a (message, user) pair never races into
//     duplicate rows;
//   - tag-association replace is atomic: a concurrent reader sees either the
//     old set or the new set, never a mixed or empty one;
//   - like/dislike counts are always recomputed from stored reactions, never
//     cached.
package board
