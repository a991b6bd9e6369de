package projection

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"mosaic/pkg/ai/aitest"
	"mosaic/pkg/common"
	"mosaic/pkg/graph"
	"mosaic/pkg/store/memory"
)

func testItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			ID:        string(rune('a' + i)),
			Type:      common.ItemTypeNote,
			Embedding: aitest.VectorFromText(string(rune('a'+i)), 16),
		}
	}
	return items
}

func assertInBounds(t *testing.T, projections []common.Projection) {
	t.Helper()
	for _, p := range projections {
		if p.X < -10 || p.X > 10 || p.Y < -10 || p.Y > 10 {
			t.Errorf("item %s at (%v, %v), outside [-10, 10]", p.ItemID, p.X, p.Y)
		}
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			t.Errorf("item %s has NaN coordinates", p.ItemID)
		}
	}
}

func TestRandomProjectionBounds(t *testing.T) {
	projections := RandomProjection(testItems(12), rand.New(rand.NewSource(1)))
	if len(projections) != 12 {
		t.Fatalf("got %d projections, want 12", len(projections))
	}
	assertInBounds(t, projections)
}

func TestSimilarityLayoutBounds(t *testing.T) {
	projections := SimilarityLayout(testItems(12), rand.New(rand.NewSource(1)))
	if len(projections) != 12 {
		t.Fatalf("got %d projections, want 12", len(projections))
	}
	assertInBounds(t, projections)
}

func TestSimilarityLayoutGroupsSimilarItems(t *testing.T) {
	// Two tight clusters of near-identical embeddings.
	items := []Item{
		{ID: "a1", Type: common.ItemTypeNote, Embedding: []float32{1, 0, 0}},
		{ID: "a2", Type: common.ItemTypeNote, Embedding: []float32{0.99, 0.05, 0}},
		{ID: "b1", Type: common.ItemTypeNote, Embedding: []float32{0, 1, 0}},
		{ID: "b2", Type: common.ItemTypeNote, Embedding: []float32{0.05, 0.99, 0}},
	}
	projections := SimilarityLayout(items, rand.New(rand.NewSource(42)))

	pos := make(map[string][2]float64)
	for _, p := range projections {
		pos[p.ItemID] = [2]float64{p.X, p.Y}
	}
	dist := func(a, b string) float64 {
		dx := pos[a][0] - pos[b][0]
		dy := pos[a][1] - pos[b][1]
		return math.Sqrt(dx*dx + dy*dy)
	}

	if dist("a1", "a2") >= dist("a1", "b1") {
		t.Errorf("similar pair further apart (%v) than dissimilar pair (%v)",
			dist("a1", "a2"), dist("a1", "b1"))
	}
	if dist("b1", "b2") >= dist("b1", "a1") {
		t.Errorf("similar pair further apart (%v) than dissimilar pair (%v)",
			dist("b1", "b2"), dist("b1", "a1"))
	}
}

func TestSingleItemDegenerateAxes(t *testing.T) {
	// One item means zero range on both axes; the unit-range fallback pins
	// it to the bottom-left corner.
	for _, compute := range []func([]Item, *rand.Rand) []common.Projection{RandomProjection, SimilarityLayout} {
		projections := compute(testItems(1), rand.New(rand.NewSource(7)))
		if len(projections) != 1 {
			t.Fatalf("got %d projections, want 1", len(projections))
		}
		if projections[0].X != -10 || projections[0].Y != -10 {
			t.Errorf("single item at (%v, %v), want (-10, -10)", projections[0].X, projections[0].Y)
		}
	}
}

func TestForceStepAppliesForcesInOneSweep(t *testing.T) {
	// Three collinear points with identical pairwise similarity. The middle
	// point gets equal and opposite pulls from its neighbors, so a step
	// computed entirely from start-of-step positions leaves it in place.
	xs := []float64{0, 1, 2}
	ys := []float64{0, 0, 0}
	sims := [][]float64{
		{1, 1, 1},
		{1, 1, 1},
		{1, 1, 1},
	}
	forceStep(xs, ys, sims)

	if math.Abs(xs[1]-1) > 1e-12 {
		t.Errorf("middle point moved to %v, want 1", xs[1])
	}
	if xs[0] == 0 || xs[2] == 2 {
		t.Error("outer points did not move")
	}
	if math.Abs((xs[0]-0)+(xs[2]-2)) > 1e-12 {
		t.Errorf("outer displacements not symmetric: %v and %v", xs[0], xs[2]-2)
	}
	for i, y := range ys {
		if y != 0 {
			t.Errorf("point %d drifted off the axis to %v", i, y)
		}
	}
}

func TestEmptyInput(t *testing.T) {
	if out := RandomProjection(nil, rand.New(rand.NewSource(1))); out != nil {
		t.Errorf("RandomProjection(nil) = %v, want nil", out)
	}
	if out := SimilarityLayout(nil, rand.New(rand.NewSource(1))); out != nil {
		t.Errorf("SimilarityLayout(nil) = %v, want nil", out)
	}
}

func TestLayoutDeterministicWithSeed(t *testing.T) {
	items := testItems(6)
	first := SimilarityLayout(items, rand.New(rand.NewSource(99)))
	second := SimilarityLayout(items, rand.New(rand.NewSource(99)))
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same seed produced different layouts at index %d: %+v vs %+v",
				i, first[i], second[i])
		}
	}
}

func TestEnginePersistsProjections(t *testing.T) {
	st := memory.NewMemoryStorage()
	client := &aitest.StubClient{Dim: 8}
	engine := NewEngine(st, graph.NewEngine(st, client)).WithSeed(5)
	ctx := context.Background()

	note1 := st.AddNote(&common.Note{UserID: "u1", Title: "One", Summary: "s1", Status: common.StatusProcessed})
	note2 := st.AddNote(&common.Note{UserID: "u1", Title: "Two", Summary: "s2", Status: common.StatusProcessed})

	projections, err := engine.Compute(ctx, "u1", MethodSimilarity)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(projections) != 2 {
		t.Fatalf("got %d projections, want 2", len(projections))
	}
	assertInBounds(t, projections)

	stored, err := st.GetProjections(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d projections, want 2", len(stored))
	}
	ids := map[string]bool{}
	for _, p := range stored {
		ids[p.ItemID] = true
	}
	if !ids[note1] || !ids[note2] {
		t.Error("stored projections missing note ids")
	}

	// Recompute upserts in place rather than accumulating rows.
	if _, err := engine.Compute(ctx, "u1", MethodRandom); err != nil {
		t.Fatal(err)
	}
	stored, _ = st.GetProjections(ctx, "u1")
	if len(stored) != 2 {
		t.Errorf("after recompute stored %d projections, want 2", len(stored))
	}
}
