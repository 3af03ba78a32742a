package model

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

// PayloadKind tags the shape of a fetched node collection.
type PayloadKind int

const (
	KindNested PayloadKind = iota
	KindFlat
	KindTextOnly
	KindRaw
)

func (k PayloadKind) String() string {
	switch k {
	case KindNested:
		return "nested"
	case KindFlat:
		return "flat"
	case KindTextOnly:
		return "text"
	case KindRaw:
		return "raw"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Payload is what a fetch strategy reports for a node: one of
// NestedPayload, FlatPayload, TextOnlyPayload or RawPayload.
type Payload interface {
	Kind() PayloadKind
	Len() int
}

// NestedPayload is a list of top-level records, each optionally carrying
// its own children.
type NestedPayload []Record

// FlatPayload is a list of records linked by their Parent field.
type FlatPayload []Record

// TextOnlyPayload is a list of labels, each becoming a childless node.
type TextOnlyPayload []string

// RawPayload is undecoded JSON. It is resolved by DecodePayload, which the
// background parser does off the owner goroutine.
type RawPayload []byte

func (NestedPayload) Kind() PayloadKind   { return KindNested }
func (FlatPayload) Kind() PayloadKind     { return KindFlat }
func (TextOnlyPayload) Kind() PayloadKind { return KindTextOnly }
func (RawPayload) Kind() PayloadKind      { return KindRaw }

func (p NestedPayload) Len() int   { return len(p) }
func (p FlatPayload) Len() int     { return len(p) }
func (p TextOnlyPayload) Len() int { return len(p) }

// Len estimates the record count by counting top-level array elements
// without decoding them.
func (p RawPayload) Len() int {
	n, _ := countElements(p)
	return n
}

// Records converts a TextOnlyPayload into plain records.
func (p TextOnlyPayload) Records() []Record {
	out := make([]Record, len(p))
	for i, text := range p {
		out[i] = Record{Text: text, textValue: true}
	}
	return out
}

// ErrMalformedPayload is returned when bytes cannot be decoded as a node
// collection.
var ErrMalformedPayload = errors.New("malformed payload")

// ClassifyRecords resolves decoded records into the tagged union. A list is
// flat when its first record declares both id and parent; a list made only
// of bare strings is text-only; everything else is nested.
func ClassifyRecords(recs []Record) Payload {
	if len(recs) == 0 {
		return NestedPayload(recs)
	}
	if recs[0].ID != "" && recs[0].Parent != "" {
		return FlatPayload(recs)
	}
	textOnly := true
	for _, r := range recs {
		if !r.TextOnly() {
			textOnly = false
			break
		}
	}
	if textOnly {
		texts := make(TextOnlyPayload, len(recs))
		for i, r := range recs {
			texts[i] = r.Text
		}
		return texts
	}
	return NestedPayload(recs)
}

// DecodePayload decodes a JSON array (or a single object) of records and
// classifies it.
func DecodePayload(data []byte) (Payload, error) {
	recs, err := DecodeRecords(context.Background(), data, 1)
	if err != nil {
		return nil, err
	}
	return ClassifyRecords(recs), nil
}

// decodeChunk is the number of records one worker decodes at a time.
const decodeChunk = 512

// DecodeRecords decodes a JSON array of records. When concurrency > 1 the
// elements are split first and decoded in parallel chunks; record order is
// preserved either way.
func DecodeRecords(ctx context.Context, data []byte, concurrency int) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedPayload)
	}
	switch data[0] {
	case '{', '"':
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return []Record{r}, nil
	case '[':
	default:
		return nil, fmt.Errorf("%w: expected array or object", ErrMalformedPayload)
	}

	if concurrency <= 1 {
		var recs []Record
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if recs == nil {
			recs = []Record{}
		}
		return recs, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	recs := make([]Record, len(elems))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for start := 0; start < len(elems); start += decodeChunk {
		end := min(start+decodeChunk, len(elems))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := json.Unmarshal(elems[i], &recs[i]); err != nil {
					return fmt.Errorf("%w: record %d: %v", ErrMalformedPayload, i, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return recs, nil
}

// countElements counts the top-level elements of a JSON array by scanning
// brackets and strings. Objects count as one.
func countElements(data []byte) (int, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0, ErrMalformedPayload
	}
	if data[0] != '[' {
		return 1, nil
	}
	depth, count := 0, 0
	inString, escaped, sawValue := false, false, false
	for _, c := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			if depth == 1 {
				sawValue = true
			}
		case '[', '{':
			if depth == 1 {
				sawValue = true
			}
			depth++
		case ']', '}':
			depth--
		case ',':
			if depth == 1 {
				count++
			}
		case ' ', '\t', '\n', '\r':
		default:
			if depth == 1 {
				sawValue = true
			}
		}
	}
	if sawValue {
		count++
	}
	return count, nil
}
