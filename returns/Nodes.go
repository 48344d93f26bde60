package returns

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// LambdaNodes adds the λ-return computation to a computational graph
// so that gradients can flow from the returns into the networks that
// predicted the rewards and values.
//
// Each of reward, value, and discount holds one node per step of the
// horizon. Reward and value nodes must share a shape, which bootstrap
// must also have. Discount nodes may be scalars or have the same shape
// as the rewards. The returned nodes are in forward (time) order.
func LambdaNodes(reward, value, discount []*G.Node, bootstrap *G.Node,
	lambda float64) ([]*G.Node, error) {
	horizon := len(reward)
	if horizon == 0 {
		return nil, fmt.Errorf("lambdanodes: empty horizon")
	}
	if len(value) != horizon || len(discount) != horizon {
		return nil, fmt.Errorf("lambdanodes: horizon mismatch\n\treward(%d)"+
			"\n\tvalue(%d)\n\tdiscount(%d)", horizon, len(value),
			len(discount))
	}
	for t := range reward {
		if !reward[t].Shape().Eq(value[t].Shape()) {
			return nil, fmt.Errorf("lambdanodes: reward shape %v != value "+
				"shape %v at step %d", reward[t].Shape(), value[t].Shape(), t)
		}
	}
	if !bootstrap.Shape().Eq(reward[horizon-1].Shape()) {
		return nil, fmt.Errorf("lambdanodes: bootstrap shape %v != reward "+
			"shape %v", bootstrap.Shape(), reward[horizon-1].Shape())
	}

	oneMinusLambda := G.NewConstant(1 - lambda)
	lambdaNode := G.NewConstant(lambda)

	out := make([]*G.Node, horizon)
	acc := bootstrap
	for t := horizon - 1; t >= 0; t-- {
		next := bootstrap
		if t < horizon-1 {
			next = value[t+1]
		}

		target, err := G.HadamardProd(discount[t], next)
		if err != nil {
			return nil, fmt.Errorf("lambdanodes: could not discount next "+
				"value at step %d: %v", t, err)
		}
		target = G.Must(G.HadamardProd(oneMinusLambda, target))
		target = G.Must(G.Add(reward[t], target))

		carry, err := G.HadamardProd(discount[t], acc)
		if err != nil {
			return nil, fmt.Errorf("lambdanodes: could not discount return "+
				"at step %d: %v", t, err)
		}
		carry = G.Must(G.HadamardProd(lambdaNode, carry))

		acc = G.Must(G.Add(target, carry))
		out[t] = acc
	}

	return out, nil
}
