package rdf

import (
	"fmt"
	"testing"
)

func feedStatements(n int) <-chan Statement {
	in := make(chan Statement, 10)
	go func() {
		defer close(in)
		for i := 0; i < n; i++ {
			in <- subjStatement(fmt.Sprintf("s%d", i), "p", "o")
		}
	}()
	return in
}

func TestChunksLossless(t *testing.T) {
	// Concatenating all chunks reproduces the input sequence in order,
	// with a valid partial last chunk.
	chunks := Chunks(feedStatements(10), 3)
	sizes := []int{}
	flat := []Statement{}
	for batch := range chunks {
		sizes = append(sizes, len(batch))
		flat = append(flat, batch...)
	}
	if len(sizes) != 4 || sizes[3] != 1 {
		t.Fatalf("unexpected chunk sizes: %v", sizes)
	}
	for i, st := range flat {
		if st.Subject != fmt.Sprintf("s%d", i) {
			t.Fatalf("order broken at %d: %s", i, st.Subject)
		}
	}
}

func TestChunksExact(t *testing.T) {
	chunks := Chunks(feedStatements(6), 3)
	count := 0
	for batch := range chunks {
		if len(batch) != 3 {
			t.Errorf("unexpected batch size %d", len(batch))
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 chunks, got %d", count)
	}
}

func TestChunksMinimumSize(t *testing.T) {
	chunks := Chunks(feedStatements(3), 0)
	count := 0
	for batch := range chunks {
		if len(batch) != 1 {
			t.Errorf("unexpected batch size %d", len(batch))
		}
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 chunks, got %d", count)
	}
}

func TestChunkSlice(t *testing.T) {
	stmts := []Statement{
		subjStatement("a", "p", "o"),
		subjStatement("b", "p", "o"),
		subjStatement("c", "p", "o"),
	}
	count := 0
	for batch := range ChunkSlice(stmts, 2) {
		count += len(batch)
	}
	if count != 3 {
		t.Errorf("expected 3 statements across chunks, got %d", count)
	}
}
