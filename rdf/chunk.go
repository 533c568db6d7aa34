package rdf

// Chunks groups a statement stream into ordered batches of size n.
// Chunk boundaries never split a statement and the last chunk may be
// smaller. Consumers process one chunk fully before the next is
// pulled, bounding peak memory to O(n) statements.
func Chunks(in <-chan Statement, n int) <-chan []Statement {
	if n < 1 {
		n = 1
	}
	out := make(chan []Statement)
	go func() {
		defer close(out)
		batch := make([]Statement, 0, n)
		for st := range in {
			batch = append(batch, st)
			if len(batch) >= n {
				out <- batch
				batch = make([]Statement, 0, n)
			}
		}
		if len(batch) > 0 {
			out <- batch
		}
	}()
	return out
}

// ChunkSlice batches an in-memory statement slice, used after
// reservoir sampling where the survivors are already materialized.
func ChunkSlice(stmts []Statement, n int) <-chan []Statement {
	in := make(chan Statement, 100)
	go func() {
		defer close(in)
		for _, st := range stmts {
			in <- st
		}
	}()
	return Chunks(in, n)
}
