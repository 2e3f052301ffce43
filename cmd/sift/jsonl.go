package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/poiesic/sift/core"
)

const idKey = "id"

var errNotObject = errors.New("record must be a JSON object")

// readRecords yields one record per non-blank line of r. Each line is a flat
// JSON object; "id" names the record and every other key becomes a field in
// the order it appears. A line without "id" is named by a hash of its text,
// so ingesting it again updates the same record. String, number and boolean
// values are kept as text, null becomes an empty value.
func readRecords(r io.Reader) iter.Seq2[*core.Record, error] {
	return func(yield func(*core.Record, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			data := bytes.TrimSpace(scanner.Bytes())
			if len(data) == 0 {
				continue
			}
			record, err := parseRecord(data)
			if err != nil {
				yield(nil, fmt.Errorf("line %d: %w", line, err))
				return
			}
			if !yield(record, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func parseRecord(data []byte) (*core.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}

	record := &core.Record{}
	hasID := false
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		value, err := scalarText(key, valTok)
		if err != nil {
			return nil, err
		}

		if key == idKey {
			record.Id = core.ID(value)
			hasID = true
			continue
		}
		record.Fields = append(record.Fields, core.Field{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if !hasID && len(record.Fields) > 0 {
		record.Id = core.IDFromContent(record.RawText())
	}
	return record, nil
}

func scalarText(key string, tok json.Token) (string, error) {
	switch v := tok.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("field %q: nested values are not supported", key)
}

// writeRecord prints a record as a flat JSON object keeping field order.
func writeRecord(w io.Writer, r *core.Record) error {
	var sb strings.Builder
	sb.WriteByte('{')
	writePair(&sb, idKey, string(r.Id))
	for _, f := range r.Fields {
		sb.WriteByte(',')
		writePair(&sb, f.Name, f.Value)
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func writePair(sb *strings.Builder, key, value string) {
	k, _ := json.Marshal(key)
	v, _ := json.Marshal(value)
	sb.Write(k)
	sb.WriteByte(':')
	sb.Write(v)
}
