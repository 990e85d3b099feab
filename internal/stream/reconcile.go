// Package stream folds line-oriented agent event streams into one final JSON object.
package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Framing prefixes recognised in front of JSON payload lines. The debug-echo
// prefix is checked first since it also contains the minimal one.
const (
	DebugEchoPrefix = "SSE Event: data: "
	DataPrefix      = "data:"
)

// DefaultMaxLineBytes bounds a single stream line.
const DefaultMaxLineBytes = 4 << 20

// Predicate inspects a parsed stream object.
type Predicate func(obj map[string]any) bool

// Policy parameterises the fold. The zero value takes the last object.
type Policy struct {
	// Accept filters objects before they can become the result. Nil accepts all.
	Accept Predicate
	// StopWhen ends the fold at the first accepted object it matches.
	StopWhen Predicate
	// MaxLineBytes overrides DefaultMaxLineBytes when positive.
	MaxLineBytes int
}

// TakeLast is the default policy: the last JSON object wins.
func TakeLast() Policy {
	return Policy{}
}

// FirstMatch stops at the first object matching p.
func FirstMatch(p Predicate) Policy {
	return Policy{StopWhen: p}
}

// Outcome is the result of one fold.
type Outcome struct {
	// Object is the selected JSON object, nil when none was found.
	Object map[string]any
	// Matched reports whether StopWhen ended the fold.
	Matched bool

	Lines     int // non-blank lines seen
	Parsed    int // lines that decoded to a JSON object
	Discarded int // non-JSON or non-object lines
	Rejected  int // objects refused by Accept
}

// Absent reports whether the fold produced no object.
func (o Outcome) Absent() bool {
	return o.Object == nil
}

// Reconcile reads r line by line and folds the JSON objects it carries
// according to p. Blank lines are skipped, framing prefixes are stripped and
// lines that are not JSON objects are discarded. A read error is returned with
// the partial outcome accumulated so far.
func Reconcile(r io.Reader, p Policy) (Outcome, error) {
	var out Outcome
	if r == nil {
		return out, nil
	}

	maxLine := p.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	initial := 64 * 1024
	if maxLine < initial {
		initial = maxLine
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxLine)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		out.Lines++

		obj, ok := ParseLine(line)
		if !ok {
			out.Discarded++
			continue
		}
		out.Parsed++

		if p.Accept != nil && !p.Accept(obj) {
			out.Rejected++
			continue
		}
		out.Object = obj

		if p.StopWhen != nil && p.StopWhen(obj) {
			out.Matched = true
			return out, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("read stream: %w", err)
	}
	return out, nil
}

// StripFraming removes one recognised framing prefix and surrounding space.
func StripFraming(line string) string {
	switch {
	case strings.HasPrefix(line, DebugEchoPrefix):
		line = strings.TrimPrefix(line, DebugEchoPrefix)
	case strings.HasPrefix(line, DataPrefix):
		line = strings.TrimPrefix(line, DataPrefix)
	}
	return strings.TrimSpace(line)
}

// ParseLine strips framing and decodes the remainder. Only JSON objects are
// accepted; arrays, scalars and malformed text report false.
func ParseLine(line string) (map[string]any, bool) {
	payload := StripFraming(line)
	if payload == "" || payload[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
