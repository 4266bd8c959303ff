// Package fetch downloads the resource archives concurrently.
//
// The orchestrator fans tasks out to workers, skips tasks whose payload is
// already installed, and joins on all of them before reporting. Failures are
// accumulated through a one-way run marker rather than cancelling peers, so
// a single bad mirror path costs one resource, not the whole batch.
package fetch
