package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const maxLineBytes = 64 << 20

// LoadField reads a whitespace-delimited 2D numeric text file, one row per line.
func LoadField(path string) (*mat.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening field %s: %v", ErrNotFound, path, err)
	}
	defer file.Close()

	m, err := ReadField(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ReadField parses the text grid format. Blank lines and lines starting with
// '#' are skipped; tokens accept anything strconv.ParseFloat does, so numpy's
// "nan" and "inf" round-trip.
func ReadField(r io.Reader) (*mat.Dense, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var data []float64
	rows, cols := 0, -1
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens := strings.Fields(line)
		if cols == -1 {
			cols = len(tokens)
		} else if len(tokens) != cols {
			return nil, fmt.Errorf("%w: line %d has %d values, expected %d", ErrFormat, lineNo, len(tokens), cols)
		}
		for i, tok := range tokens {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: invalid number %q", ErrFormat, lineNo, i+1, tok)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading grid: %v", ErrFormat, err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: no numeric rows", ErrFormat)
	}
	return mat.NewDense(rows, cols, data), nil
}

// Crop returns a contiguous copy of field[YMin:YMax, XMin:XMax].
func Crop(field *mat.Dense, region Region) (*mat.Dense, error) {
	rows, cols := field.Dims()
	if region.YMin < 0 || region.XMin < 0 || region.YMax > rows || region.XMax > cols ||
		region.Height() <= 0 || region.Width() <= 0 {
		return nil, fmt.Errorf("%w: region %v outside field of %dx%d", ErrFormat, region, rows, cols)
	}
	view := field.Slice(region.YMin, region.YMax, region.XMin, region.XMax)
	return mat.DenseCopyOf(view), nil
}

// LoadRegion loads a field and crops it to region.
func LoadRegion(path string, region Region) (*mat.Dense, error) {
	field, err := LoadField(path)
	if err != nil {
		return nil, err
	}
	cropped, err := Crop(field, region)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cropped, nil
}
