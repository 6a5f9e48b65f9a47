/*
Package resilience implements a three-state circuit breaker used to guard
outbound page fetches.

A breaker sits in front of each unreliable dependency (in practice, the
fetcher's remote hosts). While closed it passes requests through and tracks
failures; when ReadyToTrip fires it opens, failing fast with ErrCircuitOpen
until the timeout elapses; then it half-opens and admits a bounded number of
probe requests, closing again only after enough consecutive successes.

	breaker := resilience.New("fetch", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	err := breaker.Do(func() error {
		return fetchPage()
	})

State transitions:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                              |
	                                         [failure]-> Open
*/
package resilience
