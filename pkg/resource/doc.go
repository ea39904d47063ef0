// Package resource enforces the memory budget of a join and throttles its
// spill IO.
//
// The hash index reserves an estimate for every row it holds. When a
// reservation fails with ErrMemoryLimitExceeded the engine evicts a bucket to
// disk and retries, which is how allocation pressure reaches the algorithm.
package resource
