// Package poll provides a bounded, attempt-counted poller.
//
// [Poll] invokes a boolean [Probe] once per tick of a fixed interval until the
// probe reports success, the attempt budget runs out, or the context is
// cancelled. The outcome is reported as a [Result] rather than an opaque
// error, so callers can branch on [OutcomeOK], [OutcomeTimedOut] and
// [OutcomeCancelled]:
//
//	res, err := poll.Poll(ctx, func(ctx context.Context) bool {
//	    return api.Ready(ctx)
//	}, time.Second, 10)
//	if err != nil {
//	    return err // invalid arguments
//	}
//	switch res.Outcome {
//	case poll.OutcomeOK:
//	    // ready after res.Attempts ticks
//	case poll.OutcomeTimedOut:
//	    // gave up after res.Attempts ticks
//	}
//
// The only timeout is attempt exhaustion: interval * maxAttempts is the
// effective ceiling. Use a context deadline for a wall-clock bound.
package poll
