package upstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var jsonNull = []byte("null")

// orderedValues returns the values of a JSON collection the way a JavaScript
// client enumerates them: object keys that are array indices come first in
// ascending numeric order, then the remaining keys in document order. Arrays
// yield their elements in order. null yields nothing. Null elements are
// dropped because registries leave holes for deleted keys.
func orderedValues(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		out := items[:0]
		for _, it := range items {
			if !bytes.Equal(bytes.TrimSpace(it), jsonNull) {
				out = append(out, it)
			}
		}
		return out, nil
	case '{':
		return objectValues(raw)
	default:
		return nil, fmt.Errorf("expected object or array, got %q", string(raw[:1]))
	}
}

type member struct {
	key   string
	index uint64
	isIdx bool
	pos   int
	value json.RawMessage
}

func objectValues(raw json.RawMessage) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var members []member
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("object key is not a string")
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		// A repeated key keeps its first position and takes the last value.
		if i, dup := seen[key]; dup {
			members[i].value = v
			continue
		}
		idx, isIdx := arrayIndex(key)
		seen[key] = len(members)
		members = append(members, member{key: key, index: idx, isIdx: isIdx, pos: len(members), value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		switch {
		case a.isIdx && b.isIdx:
			return a.index < b.index
		case a.isIdx != b.isIdx:
			return a.isIdx
		default:
			return a.pos < b.pos
		}
	})

	out := make([]json.RawMessage, 0, len(members))
	for _, m := range members {
		if !bytes.Equal(bytes.TrimSpace(m.value), jsonNull) {
			out = append(out, m.value)
		}
	}
	return out, nil
}

// arrayIndex reports whether key is a canonical array index ("0", "17", not "017").
func arrayIndex(key string) (uint64, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n == math.MaxUint32 {
		return 0, false
	}
	return n, true
}

// number accepts a JSON number, a numeric string, or null. Null and absent
// values leave Valid false.
type number struct {
	Value float64
	Valid bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, jsonNull) {
		*n = number{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = number{Valid: true}
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = number{Value: f, Valid: true}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("not a number: %s", string(b))
	}
	*n = number{Value: f, Valid: true}
	return nil
}

// questionID accepts the string or numeric ids used in round metadata.
func questionID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errors.New("empty question id")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("question id must be a string or number: %s", string(raw))
	}
	return n.String(), nil
}

func malformed(source string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformedResponse, source, err)
}
