package rdf

import (
	"context"
	"math/rand"
	"sort"
)

// Sampler admits a bounded set of statements using the deterministic
// first-N distinct-subject policy: the first n distinct subjects are
// accepted, and every further statement about an accepted subject is
// admitted without consuming budget, so type assertions and properties
// of sampled entities stay in the stream. When the budget is spent and
// a new subject appears, the source stops pulling input.
type Sampler struct {
	budget   int
	subjects map[string]struct{}
}

// NewSampler returns a sampler with the given distinct-subject budget.
// A budget of zero or less means no sampling.
func NewSampler(n int) *Sampler {
	return &Sampler{
		budget:   n,
		subjects: make(map[string]struct{}),
	}
}

// Admit reports whether the statement is accepted and whether the
// stream is finished (budget spent and a new subject arrived).
func (s *Sampler) Admit(st Statement) (ok bool, done bool) {
	if s.budget <= 0 {
		return true, false
	}
	if _, seen := s.subjects[st.Subject]; seen {
		return true, false
	}
	if len(s.subjects) < s.budget {
		s.subjects[st.Subject] = struct{}{}
		return true, false
	}
	return false, true
}

// Remaining returns the unspent subject budget.
func (s *Sampler) Remaining() int {
	if s.budget <= 0 {
		return -1
	}
	return s.budget - len(s.subjects)
}

// Sample applies the sampler to a statement stream. The returned
// channel terminates early once the budget is exhausted; the caller
// cancels the context to release the upstream reader goroutines.
func (s *Sampler) Sample(ctx context.Context, in <-chan Statement) <-chan Statement {
	out := make(chan Statement, 100)
	go func() {
		defer close(out)
		for st := range in {
			ok, done := s.Admit(st)
			if ok {
				select {
				case out <- st:
				case <-ctx.Done():
					return
				}
			}
			if done {
				return
			}
		}
	}()
	return out
}

// reservoirCutoff stops reservoir sampling after this multiple of the
// budget has been inspected; past that point replacements are rare
// enough that further reading buys little representativeness.
const reservoirCutoff = 10

// SampleReservoir keeps a uniform random sample of n statements,
// seeded deterministically so reruns with identical parameters select
// the same statements. Memory is bounded by n. Survivors are returned
// in their original stream order; replacement fills slots out of
// order, so the reservoir is re-sorted by arrival before returning.
func SampleReservoir(in <-chan Statement, n int, seed int64) []Statement {
	if n <= 0 {
		all := []Statement{}
		for st := range in {
			all = append(all, st)
		}
		return all
	}

	type survivor struct {
		arrival int
		st      Statement
	}

	rnd := rand.New(rand.NewSource(seed))
	kept := make([]survivor, 0, n)
	seen := 0
	for st := range in {
		seen++
		if len(kept) < n {
			kept = append(kept, survivor{seen, st})
			continue
		}
		if j := rnd.Intn(seen); j < n {
			kept[j] = survivor{seen, st}
		}
		if seen >= n*reservoirCutoff {
			break
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].arrival < kept[j].arrival })

	out := make([]Statement, 0, len(kept))
	for _, s := range kept {
		out = append(out, s.st)
	}
	return out
}
