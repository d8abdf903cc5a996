// Package supervisor owns the single llama-server subprocess: it starts it
// behind a GPU gate, waits for readiness, escalates through fallback
// variants, restarts it with exponential backoff after crashes, and proxies
// completions to it.
//
// Concurrency model:
//   - opMu serializes every start, stop and restart. At most one backend
//     process exists at any time.
//   - mu guards the observable state and is only written while opMu is held,
//     so status and health reads never wait on a slow launch.
//   - Completions are proxied outside both locks.
package supervisor
