// Package async provides helpers for running independent operations
// concurrently and collecting every error.
//
// [RunParallel] runs named tasks and joins their errors. [Collect] runs n
// indexed producers and returns their values in index order, which keeps
// concurrently created servers in a stable order.
package async
