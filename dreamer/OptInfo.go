package dreamer

import (
	"gonum.org/v1/gonum/stat"
)

// Diagnostics are the diagnostics of a single optimization step
type Diagnostics struct {
	Loss         float64
	ModelLoss    float64
	ActorLoss    float64
	ValueLoss    float64
	PriorEntropy float64
	PostEntropy  float64
	Divergence   float64
	RewardLoss   float64
	ImageLoss    float64
}

// OptInfo holds the diagnostics of each optimization step taken by a
// call to Optimize, one entry per step in each field
type OptInfo struct {
	Loss         []float64
	ModelLoss    []float64
	ActorLoss    []float64
	ValueLoss    []float64
	PriorEntropy []float64
	PostEntropy  []float64
	Divergence   []float64 // KL divergence before the free nats floor
	RewardLoss   []float64
	ImageLoss    []float64
}

func newOptInfo(capacity int) OptInfo {
	f := func() []float64 { return make([]float64, 0, capacity) }
	return OptInfo{
		Loss:         f(),
		ModelLoss:    f(),
		ActorLoss:    f(),
		ValueLoss:    f(),
		PriorEntropy: f(),
		PostEntropy:  f(),
		Divergence:   f(),
		RewardLoss:   f(),
		ImageLoss:    f(),
	}
}

// Len returns the number of optimization steps recorded
func (o OptInfo) Len() int {
	return len(o.Loss)
}

// At returns the diagnostics of optimization step i
func (o OptInfo) At(i int) Diagnostics {
	return Diagnostics{
		Loss:         o.Loss[i],
		ModelLoss:    o.ModelLoss[i],
		ActorLoss:    o.ActorLoss[i],
		ValueLoss:    o.ValueLoss[i],
		PriorEntropy: o.PriorEntropy[i],
		PostEntropy:  o.PostEntropy[i],
		Divergence:   o.Divergence[i],
		RewardLoss:   o.RewardLoss[i],
		ImageLoss:    o.ImageLoss[i],
	}
}

func (o *OptInfo) append(d Diagnostics) {
	o.Loss = append(o.Loss, d.Loss)
	o.ModelLoss = append(o.ModelLoss, d.ModelLoss)
	o.ActorLoss = append(o.ActorLoss, d.ActorLoss)
	o.ValueLoss = append(o.ValueLoss, d.ValueLoss)
	o.PriorEntropy = append(o.PriorEntropy, d.PriorEntropy)
	o.PostEntropy = append(o.PostEntropy, d.PostEntropy)
	o.Divergence = append(o.Divergence, d.Divergence)
	o.RewardLoss = append(o.RewardLoss, d.RewardLoss)
	o.ImageLoss = append(o.ImageLoss, d.ImageLoss)
}

// mean returns the mean of x, or 0 if x is empty
func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}
