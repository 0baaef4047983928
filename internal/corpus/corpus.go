// Package corpus holds the seed programs the engines draw from. The corpus
// is safe for concurrent use; samples are drawn atomically.
package corpus

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"jolt/internal/il"
	"jolt/internal/iltext"
)

// Corpus is a mutex-guarded in-memory seed pool.
type Corpus struct {
	mu       sync.Mutex
	programs []*il.Program
}

// New returns an empty corpus.
func New() *Corpus {
	return &Corpus{}
}

// Add inserts a program.
func (c *Corpus) Add(p *il.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.programs = append(c.programs, p)
}

// Size returns the number of programs.
func (c *Corpus) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.programs)
}

// RandomSeed draws a program uniformly among those whose contributor set
// contains none of the excluded identities. Returns nil when no eligible
// program exists.
func (c *Corpus) RandomSeed(rng *rand.Rand, exclude []string) *il.Program {
	c.mu.Lock()
	defer c.mu.Unlock()
	var eligible []*il.Program
	for _, p := range c.programs {
		if !p.Contributors.ContainsAny(exclude) {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	return eligible[rng.Intn(len(eligible))]
}

// LoadDirectory adds every .jil file under dir to the corpus and returns
// the number of programs loaded.
func (c *Corpus) LoadDirectory(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("corpus: %w", err)
	}
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jil") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		source, err := os.ReadFile(path)
		if err != nil {
			return loaded, fmt.Errorf("corpus: %w", err)
		}
		p, err := iltext.Parse(string(source))
		if err != nil {
			return loaded, fmt.Errorf("corpus: %s: %w", entry.Name(), err)
		}
		c.Add(p)
		loaded++
	}
	return loaded, nil
}
