package main

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/samcharles93/seqwin/internal/lod"
	"github.com/samcharles93/seqwin/internal/tensor"
)

// parseLengths reads a comma separated list of sequence lengths.
func parseLengths(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("sequence length %q: %w", p, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("sequence length %d is negative", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sequence lengths in %q", s)
	}
	return out, nil
}

// randomLengths draws n lengths in [0, maxLen].
func randomLengths(n, maxLen int, seed int64) []int {
	r := rand.New(rand.NewSource(seed))
	out := make([]int, n)
	for i := range out {
		out[i] = r.Intn(maxLen + 1)
	}
	return out
}

// randomBatch builds a packed batch with the given sequence lengths.
func randomBatch(lengths []int, width int, seed int64) (tensor.Mat, lod.Layout, error) {
	layout, err := lod.FromLengths(lengths)
	if err != nil {
		return tensor.Mat{}, lod.Layout{}, err
	}
	m := tensor.NewMat(layout.TotalRows(), width)
	tensor.FillRand(&m, seed)
	return m, layout, nil
}
