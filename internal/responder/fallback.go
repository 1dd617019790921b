package responder

import (
	"context"
	"errors"
	"fmt"
)

// FallbackAdapter attempts the primary backend first and falls back on
// error. Context cancellation is the caller's signal and is never failed
// over.
type FallbackAdapter struct {
	primary    Adapter
	fallback   Adapter
	onFailover func()
}

func NewFallbackAdapter(primary, fallback Adapter, onFailover func()) *FallbackAdapter {
	return &FallbackAdapter{
		primary:    primary,
		fallback:   fallback,
		onFailover: onFailover,
	}
}

func (a *FallbackAdapter) Name() string { return "failover" }

func (a *FallbackAdapter) Reply(ctx context.Context, req Request) (Response, error) {
	resp, err := a.primary.Reply(ctx, req)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Response{}, err
	}

	fallbackResp, fallbackErr := a.fallback.Reply(ctx, req)
	if fallbackErr != nil {
		return Response{}, fmt.Errorf("primary backend error: %w; fallback backend error: %v", err, fallbackErr)
	}
	if a.onFailover != nil {
		a.onFailover()
	}
	return fallbackResp, nil
}
