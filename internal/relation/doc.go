// Package relation maintains the membership relations between entities:
// setlist contents (ordered, in ZCYLON), library contents, and the item-meta
// links for composers, genres, keywords and labels (unordered join tables).
//
// The ordering invariant is the one the host's playback and navigation logic
// depends on: positions within one owner's membership set are exactly
// 0..count-1, contiguous, no duplicates. Every mutation here either
// preserves it directly (append) or repairs it in the same transaction
// (shift-and-rewrite on remove and reorder).
//
// Whether a relation kind tolerates duplicate pairs differs per kind in the
// host (a score may appear twice in a setlist, never twice in a library), so
// the policy lives on the Kind descriptor rather than in the code paths.
package relation
