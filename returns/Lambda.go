// Package returns implements the λ-return used to train an actor and
// value function on imagined trajectories.
//
// All functions treat time as the leading (row) dimension and batch
// elements as columns. Given rewards r, values v, and discounts d over
// a horizon of H steps and a bootstrap value b, the λ-return is
// defined by the backward recursion
//
//	G[H-1] = r[H-1] + d[H-1]·b
//	G[t]   = r[t] + d[t]·((1-λ)·v[t+1] + λ·G[t+1])
//
// which reduces to the one-step TD target for λ = 0 and to the
// discounted sum of rewards through the bootstrap for λ = 1.
package returns

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Lambda computes the λ-return of a batch of reward sequences. The
// reward, value, and discount matrices must all be H x B, where H is
// the horizon and B the batch size. The bootstrap must have B
// elements. The returned matrix has the same shape as reward.
//
// Lambda panics if the shapes of its arguments are inconsistent.
func Lambda(reward, value, discount *mat.Dense, bootstrap []float64,
	lambda float64) *mat.Dense {
	horizon, batch := reward.Dims()
	if r, c := value.Dims(); r != horizon || c != batch {
		panic(fmt.Sprintf("lambda: value shape (%d, %d) != reward shape "+
			"(%d, %d)", r, c, horizon, batch))
	}
	if r, c := discount.Dims(); r != horizon || c != batch {
		panic(fmt.Sprintf("lambda: discount shape (%d, %d) != reward "+
			"shape (%d, %d)", r, c, horizon, batch))
	}
	if len(bootstrap) != batch {
		panic(fmt.Sprintf("lambda: bootstrap length %d != batch size %d",
			len(bootstrap), batch))
	}

	// Next state values: v[1:] followed by the bootstrap
	nextValues := mat.NewDense(horizon, batch, nil)
	if horizon > 1 {
		nextValues.Slice(0, horizon-1, 0, batch).(*mat.Dense).Copy(
			value.Slice(1, horizon, 0, batch))
	}
	nextValues.SetRow(horizon-1, bootstrap)

	// Targets: r + d * nextValues * (1 - λ)
	targets := mat.NewDense(horizon, batch, nil)
	targets.MulElem(discount, nextValues)
	targets.Scale(1-lambda, targets)
	targets.Add(targets, reward)

	// Backward accumulation seeded with the bootstrap
	out := mat.NewDense(horizon, batch, nil)
	acc := make([]float64, batch)
	copy(acc, bootstrap)
	scaled := make([]float64, batch)
	for t := horizon - 1; t >= 0; t-- {
		floats.MulTo(scaled, discount.RawRowView(t), acc)
		floats.Scale(lambda, scaled)
		floats.AddTo(acc, targets.RawRowView(t), scaled)
		out.SetRow(t, acc)
	}

	return out
}

// CumulativeDiscount returns the weights 1, γ, γ², ..., γ^(steps-1)
// applied to each step of an imagined trajectory.
func CumulativeDiscount(discount float64, steps int) []float64 {
	if steps <= 0 {
		return []float64{}
	}
	weights := make([]float64, steps)
	weights[0] = 1.0
	for i := 1; i < steps; i++ {
		weights[i] = weights[i-1] * discount
	}
	return weights
}
