package rdf

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

var testLines = []string{
	"<http://example.com/a> <http://example.com/p> <http://example.com/b> .",
	"<http://example.com/b> <http://example.com/p> <http://example.com/c> .",
	"<http://example.com/c> <http://example.com/p> <http://example.com/a> .",
}

func writeTempFile(t *testing.T, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStreamLines(t *testing.T) {
	path := writeTempFile(t, "test.nt", testLines)
	lines, err := StreamLines(context.Background(), path, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	got := []Line{}
	for l := range lines {
		got = append(got, l)
	}
	if len(got) != len(testLines) {
		t.Fatalf("expected %d lines, got %d", len(testLines), len(got))
	}
	for i, l := range got {
		if l.Text != testLines[i] {
			t.Errorf("line %d: %q", i, l.Text)
		}
	}
}

func TestStreamLinesResumeFromOffset(t *testing.T) {
	path := writeTempFile(t, "test.nt", testLines)

	lines, err := StreamLines(context.Background(), path, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	first := <-lines
	for range lines {
	}

	// Restarting from the first line's checkpoint must yield exactly
	// the remaining lines.
	resumed, err := StreamLines(context.Background(), path, first.Offset, 10)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{}
	for l := range resumed {
		got = append(got, l.Text)
	}
	if len(got) != 2 || got[0] != testLines[1] || got[1] != testLines[2] {
		t.Errorf("unexpected resume result: %v", got)
	}
}

func TestStreamLinesGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.nt.gz")
	fh, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(fh)
	for _, l := range testLines {
		gz.Write([]byte(l + "\n"))
	}
	gz.Close()
	fh.Close()

	lines, err := StreamLines(context.Background(), path, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for range lines {
		count++
	}
	if count != len(testLines) {
		t.Errorf("expected %d lines, got %d", len(testLines), count)
	}

	if _, err := StreamLines(context.Background(), path, 100, 10); err == nil {
		t.Error("expected an error resuming a gzip source from a nonzero offset")
	}
}

func TestStreamStatementsSkipsMalformed(t *testing.T) {
	path := writeTempFile(t, "test.nt", []string{
		testLines[0],
		"not a valid statement",
		"# comment",
		testLines[1],
	})
	stats := &Stats{}
	stmts, err := StreamStatements(context.Background(), path, 0, stats)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for range stmts {
		count++
	}
	snap := stats.Snapshot()
	if count != 2 || snap.Statements != 2 {
		t.Errorf("expected 2 statements, got %d (stats %d)", count, snap.Statements)
	}
	if snap.ParseFailures != 1 {
		t.Errorf("expected 1 parse failure, got %d", snap.ParseFailures)
	}
}

func TestStreamLinesReleasedOnCancel(t *testing.T) {
	many := make([]string, 1000)
	for i := range many {
		many[i] = testLines[i%len(testLines)]
	}
	path := writeTempFile(t, "test.nt", many)

	base := runtime.NumGoroutine()
	ctx, cancel := context.WithCancel(context.Background())

	lines, err := StreamLines(ctx, path, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	<-lines
	// The consumer walks away without draining; cancellation must
	// still unblock the reader goroutine and close the file.
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for runtime.NumGoroutine() > base {
		if time.Now().After(deadline) {
			t.Fatalf("reader goroutine still running after cancel (%d > %d)",
				runtime.NumGoroutine(), base)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStreamStatementsReleasedOnCancel(t *testing.T) {
	many := make([]string, 1000)
	for i := range many {
		many[i] = testLines[i%len(testLines)]
	}
	path := writeTempFile(t, "test.nt", many)

	base := runtime.NumGoroutine()
	ctx, cancel := context.WithCancel(context.Background())

	stmts, err := StreamStatements(ctx, path, 0, &Stats{})
	if err != nil {
		t.Fatal(err)
	}
	<-stmts
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for runtime.NumGoroutine() > base {
		if time.Now().After(deadline) {
			t.Fatalf("reader goroutines still running after cancel (%d > %d)",
				runtime.NumGoroutine(), base)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStreamStatementsMissingFile(t *testing.T) {
	if _, err := StreamStatements(context.Background(), filepath.Join(t.TempDir(), "nope.nt"), 0, &Stats{}); err == nil {
		t.Error("expected an error for a missing source")
	}
}
