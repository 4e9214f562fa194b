// Package monitor defines the snapshot, change record and fetch result types
// shared across pagewatch subsystems, and the polling loop that ties the
// fetcher, normalizer, differencer, recorder and notifier together.
package monitor
