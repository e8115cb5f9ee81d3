package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// jsonFloat accepts the non-finite literals Python's json module emits once
// quoteNonFinite has turned them into strings. null decodes as NaN.
type jsonFloat float64

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*f = jsonFloat(math.NaN())
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = unq
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	*f = jsonFloat(v)
	return nil
}

type coefEntry struct {
	Coefs      []jsonFloat `json:"coefs"`
	AproxError *jsonFloat  `json:"aprox_error"`
}

var nonFiniteLiterals = []struct{ lit, quoted string }{
	{"-Infinity", `"-Inf"`},
	{"Infinity", `"+Inf"`},
	{"NaN", `"NaN"`},
}

// quoteNonFinite rewrites bare NaN and Infinity tokens outside string literals.
func quoteNonFinite(data []byte) []byte {
	if !bytes.Contains(data, []byte("NaN")) && !bytes.Contains(data, []byte("Infinity")) {
		return data
	}
	out := make([]byte, 0, len(data)+64)
	inString, escaped := false, false
outer:
	for i := 0; i < len(data); i++ {
		ch := data[i]
		if inString {
			out = append(out, ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			out = append(out, ch)
			continue
		}
		for _, nf := range nonFiniteLiterals {
			if bytes.HasPrefix(data[i:], []byte(nf.lit)) {
				out = append(out, nf.quoted...)
				i += len(nf.lit) - 1
				continue outer
			}
		}
		out = append(out, ch)
	}
	return out
}

// maxGridValues caps rows*cols*layers of a coefficient grid (2 GiB of float64).
const maxGridValues = 1 << 28

type keyedEntry struct {
	key      string
	row, col int
	coefEntry
}

// parseCellKey decodes the "[row,col]" key convention of the coefficient files.
func parseCellKey(key string) (int, int, error) {
	parts := strings.Split(strings.Trim(key, "[]"), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("key %q is not of the form [row,col]", key)
	}
	row, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("key %q: invalid row: %v", key, err)
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("key %q: invalid col: %v", key, err)
	}
	if row < 0 || col < 0 {
		return 0, 0, fmt.Errorf("key %q: negative cell index", key)
	}
	return row, col, nil
}

// LoadCoefficients expands a sparse "[row,col]" keyed JSON object into a dense
// coefficient grid. The layer count comes from the first entry in file order.
func LoadCoefficients(path string) (*CoefficientGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading coefficients %s: %v", ErrNotFound, path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(quoteNonFinite(data)))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: %s: expected a JSON object", ErrFormat, path)
	}

	var entries []keyedEntry
	maxRow, maxCol, nLayers := 0, 0, -1
	var rowKey, colKey string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
		}
		key := tok.(string)
		row, col, err := parseCellKey(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
		}

		var e coefEntry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("%w: %s: entry %s: %v", ErrFormat, path, key, err)
		}
		if e.Coefs == nil {
			return nil, fmt.Errorf("%w: %s: entry %s has no \"coefs\"", ErrFormat, path, key)
		}

		if nLayers == -1 {
			nLayers = len(e.Coefs)
			if nLayers == 0 {
				return nil, fmt.Errorf("%w: %s: entry %s has an empty coefficient vector", ErrInconsistentData, path, key)
			}
		} else if len(e.Coefs) != nLayers {
			return nil, fmt.Errorf("%w: %s: entry %s has %d coefficients, expected %d", ErrInconsistentData, path, key, len(e.Coefs), nLayers)
		}
		if row >= maxRow {
			maxRow, rowKey = row, key
		}
		if col >= maxCol {
			maxCol, colKey = col, key
		}
		entries = append(entries, keyedEntry{key: key, row: row, col: col, coefEntry: e})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s: no coefficient entries", ErrFormat, path)
	}

	limit := maxGridValues / nLayers
	if maxRow >= limit || maxCol >= limit || (maxRow+1)*(maxCol+1) > limit {
		key := rowKey
		if maxCol > maxRow {
			key = colKey
		}
		return nil, fmt.Errorf("%w: %s: key %s implies a %d x %d x %d grid, more than %d values",
			ErrFormat, path, key, uint64(maxRow)+1, uint64(maxCol)+1, nLayers, maxGridValues)
	}
	grid := NewCoefficientGrid(path, maxRow+1, maxCol+1, nLayers)
	for _, e := range entries {
		aproxErr := math.NaN()
		if e.AproxError != nil {
			aproxErr = float64(*e.AproxError)
		}
		coefs := make([]float64, len(e.Coefs))
		for l, v := range e.Coefs {
			coefs[l] = float64(v)
		}
		grid.Set(e.row, e.col, coefs, aproxErr)
	}
	return grid, nil
}
