package main

import (
	"Go2NetSentinel/internal/scorer"
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

type treeStats struct {
	Trees      int `json:"trees"`
	Nodes      int `json:"nodes"`
	Leaves     int `json:"leaves"`
	MaxDepth   int `json:"max_depth"`
	SampleSize int `json:"sample_size"`
}

type info struct {
	Path      string     `json:"path"`
	Features  []string   `json:"features"`
	ScoreMin  float64    `json:"score_min"`
	ScoreMax  float64    `json:"score_max"`
	ScoreMean float64    `json:"score_mean"`
	ScoreStd  float64    `json:"score_std"`
	Model     string     `json:"model"`
	Forest    *treeStats `json:"forest,omitempty"`
}

func depth(t scorer.Tree, i, d int) int {
	n := t.Nodes[i]
	if n.Left < 0 || d > len(t.Nodes) {
		return d
	}
	return max(depth(t, n.Left, d+1), depth(t, n.Right, d+1))
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/bundleinfo/main.go <bundle_file>")
		os.Exit(1)
	}
	path := os.Args[1]

	b, err := scorer.LoadBundle(path)
	if err != nil {
		log.Fatalf("Unable to load bundle: %v", err)
	}

	out := info{
		Path:      path,
		Features:  b.Features,
		ScoreMin:  b.ScoreMin,
		ScoreMax:  b.ScoreMax,
		ScoreMean: b.ScoreMean,
		ScoreStd:  b.ScoreStd,
		Model:     fmt.Sprintf("%T", b.Model),
	}
	if f, ok := b.Model.(*scorer.IsolationForest); ok {
		st := &treeStats{Trees: len(f.Trees), SampleSize: f.SampleSize}
		for _, t := range f.Trees {
			st.Nodes += len(t.Nodes)
			for _, n := range t.Nodes {
				if n.Left < 0 {
					st.Leaves++
				}
			}
			st.MaxDepth = max(st.MaxDepth, depth(t, 0, 0))
		}
		out.Forest = st
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Failed to print bundle info: %v", err)
	}
}
