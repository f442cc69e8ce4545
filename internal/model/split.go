package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// newRand returns a PCG generator for seed. stream separates generators
// sharing a seed.
func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// stratifiedSplit partitions row indices into train and test sets so that
// each class keeps its share of the test set. The test set holds
// ceil(testSize*n) rows, allocated to classes by largest remainder.
func stratifiedSplit(y []int, testSize float64, seed uint64) (train, test []int, err error) {
	n := len(y)
	byClass := make(map[int][]int)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	classes := make([]int, 0, len(byClass))
	for c, rows := range byClass {
		if len(rows) < 2 {
			return nil, nil, fmt.Errorf("%w: class %d has %d row(s)", domain.ErrInsufficientData, c, len(rows))
		}
		classes = append(classes, c)
	}
	sort.Ints(classes)

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < len(classes) || nTrain < len(classes) {
		return nil, nil, fmt.Errorf("%w: %d rows cannot cover %d classes in both partitions",
			domain.ErrInsufficientData, n, len(classes))
	}

	alloc := make([]int, len(classes))
	type remainder struct {
		class int
		frac  float64
	}
	rems := make([]remainder, len(classes))
	assigned := 0
	for i, c := range classes {
		exact := float64(nTest) * float64(len(byClass[c])) / float64(n)
		alloc[i] = int(math.Floor(exact))
		rems[i] = remainder{class: i, frac: exact - float64(alloc[i])}
		assigned += alloc[i]
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for k := 0; assigned < nTest; k = (k + 1) % len(rems) {
		i := rems[k].class
		if alloc[i] < len(byClass[classes[i]])-1 {
			alloc[i]++
			assigned++
		}
	}

	rng := newRand(seed, 0)
	for i, c := range classes {
		rows := append([]int(nil), byClass[c]...)
		rng.Shuffle(len(rows), func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })
		test = append(test, rows[:alloc[i]]...)
		train = append(train, rows[alloc[i]:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

func take(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for k, i := range idx {
		xs[k] = X[i]
		ys[k] = y[i]
	}
	return xs, ys
}
