package rdf

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bmeg/kgload/log"
)

// Line is one raw source line with the byte offset of the line that
// follows it, usable as a resume checkpoint.
type Line struct {
	Text   string
	Number int64
	Offset int64
}

// StreamLines returns a channel of lines from a file, starting at the
// given byte offset. Gzip compressed files (.gz suffix) are read
// transparently but only support offset 0. The whole file is never
// held in memory. Cancelling the context stops the reader and closes
// the file even when the consumer stopped receiving.
func StreamLines(ctx context.Context, file string, offset int64, chanSize int) (<-chan Line, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	var src io.Reader = fh
	if strings.HasSuffix(file, ".gz") {
		if offset != 0 {
			fh.Close()
			return nil, fmt.Errorf("cannot resume gzip source %s from offset %d", file, offset)
		}
		gz, err := gzip.NewReader(fh)
		if err != nil {
			fh.Close()
			return nil, err
		}
		src = gz
	} else if offset > 0 {
		if _, err := fh.Seek(offset, io.SeekStart); err != nil {
			fh.Close()
			return nil, err
		}
	}

	lineChan := make(chan Line, chanSize)

	go func() {
		defer fh.Close()
		defer close(lineChan)

		reader := bufio.NewReaderSize(src, 64*1024)
		pos := offset
		var number int64
		for {
			text, err := reader.ReadString('\n')
			if len(text) > 0 {
				pos += int64(len(text))
				number++
				select {
				case lineChan <- Line{
					Text:   strings.TrimRight(text, "\r\n"),
					Number: number,
					Offset: pos,
				}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					log.WithFields(log.Fields{"error": err}).Errorf("Reading file: %s", file)
				}
				return
			}
		}
	}()

	return lineChan, nil
}

// StreamStatements produces parsed statements from a triple source.
// Files ending in .ttl are decoded as Turtle (prefixed names allowed);
// everything else is treated as line-oriented N-Triples where each
// malformed line is skipped and counted rather than aborting the read.
// Cancelling the context releases the reader goroutines.
func StreamStatements(ctx context.Context, file string, offset int64, stats *Stats) (<-chan Statement, error) {
	if strings.HasSuffix(file, ".ttl") || strings.HasSuffix(file, ".ttl.gz") {
		return streamTurtle(ctx, file, stats)
	}
	lines, err := StreamLines(ctx, file, offset, 100)
	if err != nil {
		return nil, err
	}

	out := make(chan Statement, 100)
	go func() {
		defer close(out)
		for line := range lines {
			stats.AddLine(line.Offset)
			st, err := ParseLine(line.Text)
			if err != nil {
				stats.AddFailure()
				log.WithFields(log.Fields{"line": line.Number, "error": err}).Debugf("Skipping statement")
				continue
			}
			if st == nil {
				continue
			}
			stats.AddStatement()
			select {
			case out <- *st:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
