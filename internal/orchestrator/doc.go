// Package orchestrator is the message-processing entry point of companiond.
//
// For every user message the Orchestrator loads the companion's behavior
// profiles, its progression counters and the (companion, user) bond, then
// routes the message down one of two paths:
//
//	Idle -> FastPath -> Committed -> Idle
//	Idle -> DeepPath -> Committed -> Idle
//
// FastPath applies deterministic, rule-based updates from the trigger
// detector and answers from a template responder. DeepPath asks the
// generation capability for a reply and a proposed delta, which is then
// pushed through the same state machines so clamps and invariants still
// hold. A DeepPath that fails, times out or is refused by the cost guard
// falls back to FastPath and is logged as degraded_mode.
//
// All mutations for one message are persisted by a single store commit.
// Cancelling the caller's context before that commit leaves the store
// untouched.
//
// # Sequencing
//
// Messages for one (companion, user) pair must be processed in order.
// ProcessMessage does not lock; callers acquire the pair token first:
//
//	release, err := locks.Acquire(ctx, pairlock.Pair{CompanionID: c, UserID: u})
//	if err != nil {
//		return err
//	}
//	defer release()
//	res, err := orch.ProcessMessage(ctx, orchestrator.Request{...})
package orchestrator
