// Package projection places graph items on a 2D canvas. Two methods are
// available: a cheap random linear projection of the embedding space, and an
// iterative force layout that spaces items by pairwise similarity. Both
// normalize their output to the [-10, 10] square.
package projection

import (
	"math"
	"math/rand"

	"mosaic/internal/util"
	"mosaic/pkg/common"
)

const (
	layoutIterations = 50
	learningRate     = 0.1
	canvasHalfSize   = 10.0
)

// Item is one embeddable thing to place. Items without an embedding are
// placed at the origin before normalization.
type Item struct {
	ID        string
	Type      common.ItemType
	Embedding []float32
}

// RandomProjection projects mean-centered embeddings onto two random unit
// directions. Structure in the embedding space survives only statistically,
// but the result is instant and stable enough for a first paint.
func RandomProjection(items []Item, rng *rand.Rand) []common.Projection {
	if len(items) == 0 {
		return nil
	}

	dim := 0
	for _, item := range items {
		if len(item.Embedding) > dim {
			dim = len(item.Embedding)
		}
	}
	if dim == 0 {
		return normalize(items, make([]float64, len(items)), make([]float64, len(items)))
	}

	mean := make([]float64, dim)
	counted := 0
	for _, item := range items {
		if len(item.Embedding) != dim {
			continue
		}
		for i, v := range item.Embedding {
			mean[i] += float64(v)
		}
		counted++
	}
	if counted > 0 {
		for i := range mean {
			mean[i] /= float64(counted)
		}
	}

	dirX := randomUnitVector(dim, rng)
	dirY := randomUnitVector(dim, rng)

	xs := make([]float64, len(items))
	ys := make([]float64, len(items))
	for i, item := range items {
		if len(item.Embedding) != dim {
			continue
		}
		for d, v := range item.Embedding {
			centered := float64(v) - mean[d]
			xs[i] += centered * dirX[d]
			ys[i] += centered * dirY[d]
		}
	}
	return normalize(items, xs, ys)
}

// SimilarityLayout runs a spring simulation where the rest length of each
// pair's spring grows as their cosine similarity shrinks, so similar items
// settle near each other. Each iteration accumulates the forces of every
// pair against the iteration's starting positions and applies them in one
// sweep; no point moves mid-iteration.
func SimilarityLayout(items []Item, rng *rand.Rand) []common.Projection {
	if len(items) == 0 {
		return nil
	}

	xs := make([]float64, len(items))
	ys := make([]float64, len(items))
	for i := range items {
		xs[i] = rng.Float64()*20 - 10
		ys[i] = rng.Float64()*20 - 10
	}

	sims := similarityMatrix(items)
	for iter := 0; iter < layoutIterations; iter++ {
		forceStep(xs, ys, sims)
	}
	return normalize(items, xs, ys)
}

// similarityMatrix precomputes pairwise cosine similarity once; the layout
// loop reads it 50 times over.
func similarityMatrix(items []Item) [][]float64 {
	sims := make([][]float64, len(items))
	for i := range sims {
		sims[i] = make([]float64, len(items))
	}
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			s := util.Cosine(items[i].Embedding, items[j].Embedding)
			sims[i][j], sims[j][i] = s, s
		}
	}
	return sims
}

// forceStep advances the simulation by one synchronous iteration: all pair
// forces are computed from the positions as they were when the step began,
// then applied together.
func forceStep(xs, ys []float64, sims [][]float64) {
	n := len(xs)
	fxs := make([]float64, n)
	fys := make([]float64, n)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			targetDist := 2 + (1-sims[i][j])*8

			dx := xs[j] - xs[i]
			dy := ys[j] - ys[i]
			dist := math.Sqrt(dx*dx+dy*dy) + 0.01

			force := (dist - targetDist) * 0.1
			fx := dx / dist * force * learningRate
			fy := dy / dist * force * learningRate

			fxs[i] += fx
			fys[i] += fy
			fxs[j] -= fx
			fys[j] -= fy
		}
	}

	for i := 0; i < n; i++ {
		xs[i] += fxs[i]
		ys[i] += fys[i]
	}
}

func randomUnitVector(dim int, rng *rand.Rand) []float64 {
	vec := make([]float64, dim)
	var norm float64
	for i := range vec {
		vec[i] = rng.NormFloat64()
		norm += vec[i] * vec[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// normalize rescales both axes independently into [-10, 10]. A degenerate
// axis (all items at the same coordinate) falls back to a unit range, which
// places every item at -10 on that axis.
func normalize(items []Item, xs, ys []float64) []common.Projection {
	minX, maxX := minMax(xs)
	minY, maxY := minMax(ys)
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX <= 0 {
		rangeX = 1
	}
	if rangeY <= 0 {
		rangeY = 1
	}

	out := make([]common.Projection, len(items))
	for i, item := range items {
		out[i] = common.Projection{
			ItemType: item.Type,
			ItemID:   item.ID,
			X:        ((xs[i]-minX)/rangeX - 0.5) * 2 * canvasHalfSize,
			Y:        ((ys[i]-minY)/rangeY - 0.5) * 2 * canvasHalfSize,
		}
	}
	return out
}

func minMax(vals []float64) (float64, float64) {
	min, max := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
