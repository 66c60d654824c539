/*
Package observability turns orchestrator lifecycle events into operational signals.

Metrics exposes Prometheus collectors (transition outcomes, durations, progress and
host unit operations) and returns domain.LifecycleHooks that feed them. LogHooks
returns hooks that write the same events to a structured logger.
*/
package observability
