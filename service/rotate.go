package service

import (
	"context"
	"fmt"
)

// clientSource yields authenticated clients by pool position. Implemented by
// ClientPool; tests substitute fakes.
type clientSource interface {
	Size() int
	Authenticate(ctx context.Context, clientNum int) (*Client, error)
}

// forEachClient runs op against each client in order until one succeeds.
// Each client has its own quota allocation, so a quota-class failure is
// resolved by moving to the next identity. A videoNotFound failure is ground
// truth independent of which client asked, so it is surfaced immediately
// instead of burning through the rest of the pool. This is the single retry
// policy shared by upload, delete, publish and status queries.
func forEachClient[T any](ctx context.Context, pool clientSource, opName string, op func(*Client) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for num := 1; num <= pool.Size(); num++ {
		client, err := pool.Authenticate(ctx, num)
		if err != nil {
			lastErr = err
			continue
		}

		result, err := op(client)
		if err == nil {
			return result, nil
		}
		if isVideoNotFound(err) {
			return zero, err
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no clients configured")
	}
	return zero, fmt.Errorf("%s: %w: %w", opName, ErrAllClientsFailed, lastErr)
}
