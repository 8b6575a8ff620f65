// Package search enumerates candidate color transforms over a parameter grid and
// tests each one against the user's region samples.
//
// A GridSpec is a Cartesian product of float ranges: one shared or three independent
// diagonal axes plus six off-diagonal axes. Engine.RunSearch snapshots the source
// buffer, submits one scheduler job per grid point and returns at once. Each job
// evaluates its transform against the samples in order; any transform matching at
// least the first sample produces a transformed copy of the whole source, which is
// published to the engine's latest-result slot and optionally written to disk.
//
// The search is exhaustive: there is no pruning across candidates, and the visible
// result is whichever matching job published last, not the best one. Use
// Engine.Matches for every match found.
package search
