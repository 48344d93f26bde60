// Package op provides extended Gorgonia graph operations for the
// distributions used by the world model.
//
// Max is adapted from aunum/gold on GitHub
package op

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
)

// Max returns the elementwise max of the nodes. If values are equal the
// first value is returned. Gradients flow only to the selected value.
func Max(a *G.Node, b *G.Node) (retVal *G.Node, err error) {
	aMask, err := G.Gte(a, b, true)
	if err != nil {
		return nil, err
	}
	aVal, err := G.HadamardProd(a, aMask)
	if err != nil {
		return nil, err
	}

	bMask, err := G.Gt(b, a, true)
	if err != nil {
		return nil, err
	}
	bVal, err := G.HadamardProd(b, bMask)
	if err != nil {
		return nil, err
	}
	return G.Add(aVal, bVal)
}

// UnitNormalLogProb returns the log density of each row of x under a
// diagonal Gaussian with mean mean and unit variance. Both x and mean
// must be n x d matrices; the result is a vector of n log densities.
func UnitNormalLogProb(x, mean *G.Node) (*G.Node, error) {
	if !x.Shape().Eq(mean.Shape()) {
		return nil, fmt.Errorf("unitnormallogprob: shape mismatch between "+
			"x %v and mean %v", x.Shape(), mean.Shape())
	}
	dims := float64(x.Shape()[1])

	diff, err := G.Sub(x, mean)
	if err != nil {
		return nil, fmt.Errorf("unitnormallogprob: %v", err)
	}
	sq := G.Must(G.Square(diff))
	sum := G.Must(G.Sum(sq, 1))

	// -0.5 Σ (x - μ)² - 0.5 d log(2π)
	scaled := G.Must(G.HadamardProd(G.NewConstant(-0.5), sum))
	return G.Add(scaled, G.NewConstant(-0.5*dims*math.Log(2*math.Pi)))
}

// DiagNormalKL returns KL(q || p) for each row of two diagonal
// Gaussians q = N(meanQ, stdQ²) and p = N(meanP, stdP²), summed over
// the columns:
//
//	KL = Σ log(σp/σq) + (σq² + (μq - μp)²) / (2σp²) - 1/2
//
// All arguments must be n x d matrices; the result has n elements.
func DiagNormalKL(meanQ, stdQ, meanP, stdP *G.Node) (*G.Node, error) {
	for _, n := range []*G.Node{stdQ, meanP, stdP} {
		if !n.Shape().Eq(meanQ.Shape()) {
			return nil, fmt.Errorf("diagnormalkl: shape mismatch %v != %v",
				n.Shape(), meanQ.Shape())
		}
	}

	logRatio := G.Must(G.Sub(G.Must(G.Log(stdP)), G.Must(G.Log(stdQ))))

	varQ := G.Must(G.Square(stdQ))
	varP := G.Must(G.Square(stdP))
	meanDiff := G.Must(G.Square(G.Must(G.Sub(meanQ, meanP))))
	ratio := G.Must(G.HadamardDiv(G.Must(G.Add(varQ, meanDiff)),
		G.Must(G.HadamardProd(G.NewConstant(2.0), varP))))

	elem := G.Must(G.Add(logRatio, ratio))
	elem = G.Must(G.Sub(elem, G.NewConstant(0.5)))

	return G.Sum(elem, 1)
}
