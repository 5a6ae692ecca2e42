// Package capture supplies point correspondences to the estimator, either
// from fixed lists, from files or from interactive click streams.
package capture

import (
	"context"

	"github.com/MeKo-Tech/panorama/internal/homography"
)

// Provider yields index-aligned correspondences between image A and image B.
type Provider interface {
	Correspondences(ctx context.Context) ([]homography.Correspondence, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) ([]homography.Correspondence, error)

// Correspondences calls f(ctx).
func (f ProviderFunc) Correspondences(ctx context.Context) ([]homography.Correspondence, error) {
	return f(ctx)
}

// StaticProvider serves two fixed point lists. The longer list is truncated.
type StaticProvider struct {
	A []homography.Point
	B []homography.Point
}

// Correspondences pairs A and B by index.
func (p StaticProvider) Correspondences(ctx context.Context) ([]homography.Correspondence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return homography.Pair(p.A, p.B), nil
}

// List serves a fixed set of correspondences.
type List []homography.Correspondence

// Correspondences returns a copy of the list.
func (l List) Correspondences(ctx context.Context) ([]homography.Correspondence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]homography.Correspondence(nil), l...), nil
}
