// Package compression reduces an unbounded conversation history to a bounded
// context window.
//
// The window keeps the most recent messages verbatim and folds everything
// older into a single synthetic summary entry. Summaries are rule based:
//
//   - older messages are split into fixed-size chunks (default 5)
//   - each chunk becomes one line holding its top-K frequent non-stopword
//     keywords plus a short excerpt of the first user and first companion
//     message in the chunk
//   - the lines are joined under a "[summary]" header and marked with
//     Message.Summary so later passes can recognise them
//
// Compression never calls a generation backend and never uses randomness, so
// the same input always yields the same window.
//
// # Fixed point
//
// Re-compressing a window's own output returns the same window. Summary
// entries are carried forward verbatim and never re-chunked, so summaries do
// not compound across passes.
//
// # Budgets
//
// How many recent messages survive depends on the user's plan; see
// Compressor.BudgetFor.
package compression
