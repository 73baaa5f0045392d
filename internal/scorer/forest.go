package scorer

import (
	"fmt"
	"math"
)

// Model is the black-box scoring contract: a higher decision value means more normal.
type Model interface {
	DecisionFunction(row []float64) float64
}

// Node is one node of an isolation tree. A node with Left < 0 is a leaf.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	// Size is the number of training samples that reached a leaf.
	Size int
}

// Tree is an isolation tree stored as a flat node slice rooted at index 0.
type Tree struct {
	Nodes []Node
}

// IsolationForest evaluates a pre-trained isolation forest.
type IsolationForest struct {
	Trees []Tree
	// SampleSize is the number of samples each tree was grown on.
	SampleSize int
	// Offset is subtracted from the sample score so that the decision boundary sits at 0.
	Offset float64
}

// Validate checks that every node references a valid child and feature.
func (f *IsolationForest) Validate(numFeatures int) error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Left < 0 {
				continue
			}
			if n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: child out of range", ti, ni)
			}
			if n.Feature < 0 || n.Feature >= numFeatures {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
		}
	}
	return nil
}

// ScoreSamples returns the opposite of the anomaly score of the original paper,
// in [-1, 0).
func (f *IsolationForest) ScoreSamples(row []float64) float64 {
	if len(f.Trees) == 0 {
		return math.NaN()
	}
	var total float64
	for _, t := range f.Trees {
		total += t.pathLength(row)
	}
	mean := total / float64(len(f.Trees))
	norm := averagePathLength(f.SampleSize)
	if norm == 0 {
		norm = 1
	}
	return -math.Pow(2, -mean/norm)
}

// DecisionFunction implements Model.
func (f *IsolationForest) DecisionFunction(row []float64) float64 {
	return f.ScoreSamples(row) - f.Offset
}

func (t Tree) pathLength(row []float64) float64 {
	depth := 0
	i := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[i]
		if n.Left < 0 {
			return float64(depth) + averagePathLength(n.Size)
		}
		v := 0.0
		if n.Feature < len(row) {
			v = row[n.Feature]
		}
		if v <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		depth++
	}
	// A cycle in the node graph; treat as maximally deep.
	return float64(depth)
}

const eulerGamma = 0.5772156649015329

// averagePathLength is c(n), the mean path length of an unsuccessful search in
// a binary search tree of n nodes.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
