// Command shuffle_vector_gen writes permutation and block-distribution
// vectors so other implementations can check they shuffle identically.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"xdao.co/pixzle/distribute"
	"xdao.co/pixzle/shuffle"
)

type permutationVector struct {
	Seed        shuffle.Seed `json:"seed"`
	N           int          `json:"n"`
	Permutation []int        `json:"permutation"`
}

type countsVector struct {
	TotalBlocks int   `json:"totalBlocks"`
	Fragments   int   `json:"fragments"`
	Counts      []int `json:"counts"`
}

type vectorFile struct {
	Algorithm    string              `json:"algorithm"`
	Permutations []permutationVector `json:"permutations"`
	CrossCounts  []countsVector      `json:"crossImageCounts"`
}

var (
	defaultSeeds = []string{"1", "42", "9007199254740991", "-7", "pixzle", "日本語"}
	defaultSizes = []int{0, 1, 2, 3, 8, 17, 64}
)

func main() {
	fs := pflag.NewFlagSet("shuffle_vector_gen", pflag.ExitOnError)
	seeds := fs.StringSlice("seed", defaultSeeds, "seeds (integers become numeric seeds)")
	sizes := fs.IntSlice("n", defaultSizes, "sequence lengths")
	outDir := fs.String("out", "", "output directory")
	_ = fs.Parse(os.Args[1:])

	if *outDir == "" {
		fmt.Fprintln(os.Stderr, "usage: shuffle_vector_gen --out <dir> [--seed 42,pixzle] [--n 0,1,8]")
		os.Exit(2)
	}

	v, err := build(*seeds, *sizes)
	if err != nil {
		fatalf("build vectors: %v", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatalf("marshal: %v", err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatalf("mkdir out: %v", err)
	}
	path := filepath.Join(*outDir, shuffle.Algorithm+".json")
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		fatalf("write vectors: %v", err)
	}
	fmt.Println(path)
}

func build(seeds []string, sizes []int) (vectorFile, error) {
	v := vectorFile{Algorithm: shuffle.Algorithm}
	for _, s := range seeds {
		seed := shuffle.ParseSeed(s)
		for _, n := range sizes {
			if n < 0 {
				return vectorFile{}, fmt.Errorf("negative length %d", n)
			}
			v.Permutations = append(v.Permutations, permutationVector{Seed: seed, N: n, Permutation: shuffle.Permutation(n, seed)})
		}
	}
	for _, total := range []int{0, 1, 5, 10, 11, 100} {
		for _, frags := range []int{1, 2, 3, 4} {
			counts, err := distribute.CountsForCrossImages(total, frags)
			if err != nil {
				return vectorFile{}, err
			}
			v.CrossCounts = append(v.CrossCounts, countsVector{TotalBlocks: total, Fragments: frags, Counts: counts})
		}
	}
	return v, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
