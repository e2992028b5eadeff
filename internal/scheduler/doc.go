// Package scheduler runs named jobs on per-job intervals.
//
// This package is internal to remotedata. The board uses it to refresh each
// resource store on its own interval, with a cap on concurrent refreshes.
// Ticks are driven at the GCD of all job intervals (floored at one second)
// and only due jobs run on each tick.
package scheduler
