package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// Encoded is the JSON form of Fields used by the postgres and redis
// adapters. Times are stored as integer unix nanoseconds so that numeric
// comparisons order them; TimeFields records which keys to restore as time.
type Encoded struct {
	Data       json.RawMessage
	TimeFields []string
}

// Encode converts normalized fields into their JSON form.
func Encode(f Fields) (Encoded, error) {
	plain := make(map[string]any, len(f))
	var times []string
	for k, v := range f {
		if t, ok := v.(time.Time); ok {
			plain[k] = t.UnixNano()
			times = append(times, k)
			continue
		}
		plain[k] = v
	}
	sort.Strings(times)
	data, err := json.Marshal(plain)
	if err != nil {
		return Encoded{}, fmt.Errorf("encode fields: %w", err)
	}
	return Encoded{Data: data, TimeFields: times}, nil
}

// Decode restores fields produced by Encode.
func Decode(e Encoded) (Fields, error) {
	raw := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(e.Data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	isTime := make(map[string]bool, len(e.TimeFields))
	for _, k := range e.TimeFields {
		isTime[k] = true
	}

	out := make(Fields, len(raw))
	for k, v := range raw {
		n, isNumber := v.(json.Number)
		switch {
		case isTime[k] && isNumber:
			nanos, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("decode time field %s: %w", k, err)
			}
			out[k] = time.Unix(0, nanos).UTC()
		case isNumber:
			if i, err := n.Int64(); err == nil {
				out[k] = i
				continue
			}
			f, err := n.Float64()
			if err != nil || math.IsInf(f, 0) {
				return nil, fmt.Errorf("decode number field %s: %q", k, n.String())
			}
			out[k] = f
		default:
			out[k] = v
		}
	}
	return out, nil
}
