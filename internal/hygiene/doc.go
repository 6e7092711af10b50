// Package hygiene collects span lifetime patterns, one correct and two
// broken on purpose.
//
// WithSpan and Handle are the correct pattern: a span opens right before a
// unit of work and is guaranteed to end when the work returns, fails or
// panics.
//
// Holder keeps work items, and the spans they own, alive in a long-lived
// collection. The spans stay open until ReleaseAll, so nothing reaches the
// exporter and tracing_spans_open only grows.
//
// ProgramSpan wraps the whole run in one span. Work started under it gets
// the program span back instead of a span of its own, so a backend sees a
// single trace as long as the process with no structure inside.
package hygiene
