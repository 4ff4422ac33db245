/*
Package resilience provides a circuit breaker for collaborators that can fail
on the host side, such as the external browser behind the preview.

# States

	Closed --[Threshold consecutive failures]-> Open --[Cooldown]-> Half-Open
	Half-Open --[probe succeeds]-> Closed
	Half-Open --[probe fails]-> Open

Only one probe runs while half-open; other calls are rejected with ErrOpen.
A call that ends because its own context was canceled is neither a success
nor a failure.

# Usage

	breaker := resilience.New("chrome", resilience.Settings{
		Threshold: 3,
		Cooldown:  30 * time.Second,
	})

	err := breaker.Do(ctx, func(ctx context.Context) error {
		h, err = boundary.Create(ctx, document)
		return err
	})
*/
package resilience
