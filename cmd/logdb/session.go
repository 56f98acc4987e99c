package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fenilsonani/logdb/internal/record"
	"github.com/fenilsonani/logdb/pkg/engine"
)

// readRecords parses one JSON record.Record per line from path ("-" for
// stdin). Blank lines are skipped.
func readRecords(path string) ([]*record.Record, error) {
	var r io.Reader
	if path == "-" || path == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening records file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var recs []*record.Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if len(text) == 0 {
			continue
		}
		var rec record.Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("parsing record at line %d: %w", line, err)
		}
		recs = append(recs, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return recs, nil
}

// buildEngine replays every record in path through a fresh Engine, assigning
// ids in file order, and seals it when seal is true.
func buildEngine(path string, seal bool) (*engine.Engine, []int64, error) {
	recs, err := readRecords(path)
	if err != nil {
		return nil, nil, err
	}

	e := engine.New(engine.DefaultConfig())
	ids := make([]int64, 0, len(recs))
	for i, rec := range recs {
		id, err := e.Put(rec)
		if err != nil {
			return nil, nil, fmt.Errorf("ingesting record %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	if seal {
		if err := e.Seal(); err != nil {
			return nil, nil, fmt.Errorf("sealing: %w", err)
		}
	}
	return e, ids, nil
}
