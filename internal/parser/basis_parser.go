package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// BasisOptions controls how a basis directory is scanned.
type BasisOptions struct {
	// Pattern must contain a capture group yielding the basis index.
	// Empty means DefaultBasisPattern.
	Pattern string
	// Strict rejects directories whose indices are not contiguous.
	Strict bool
}

// extractIndex pulls the integer index out of a file name, reporting whether
// the name matched at all.
func extractIndex(re *regexp.Regexp, name string) (int, bool, error) {
	match := re.FindStringSubmatch(name)
	if match == nil {
		return 0, false, nil
	}
	idx, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, true, fmt.Errorf("could not convert index %q of %s: %v", match[1], name, err)
	}
	return idx, true, nil
}

// LoadBasisStack loads every matching file of dir, crops it to region and orders
// the stack by ascending index. Files that do not match the pattern are ignored.
func LoadBasisStack(dir string, region Region, opts BasisOptions) (*BasisStack, error) {
	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultBasisPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: basis pattern %q: %v", ErrConfig, pattern, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("%w: basis pattern %q has no capture group", ErrConfig, pattern)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: basis directory %s: %v", ErrNotFound, dir, err)
	}

	files := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		idx, ok, err := extractIndex(re, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfig, dir, err)
		}
		if !ok {
			continue
		}
		if prev, dup := files[idx]; dup {
			return nil, fmt.Errorf("%w: %s: files %s and %s share basis index %d", ErrConfig, dir, filepath.Base(prev), entry.Name(), idx)
		}
		files[idx] = filepath.Join(dir, entry.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files matching %q in %s", ErrNotFound, pattern, dir)
	}

	stack := &BasisStack{Dir: dir, Indices: make([]int, 0, len(files))}
	for idx := range files {
		stack.Indices = append(stack.Indices, idx)
	}
	sort.Ints(stack.Indices)

	if gaps := stack.Gaps(); opts.Strict && len(gaps) > 0 {
		return nil, fmt.Errorf("%w: %s: basis indices not contiguous, missing %v", ErrConfig, dir, gaps)
	}

	stack.Fields = make([]*mat.Dense, 0, len(files))
	for _, idx := range stack.Indices {
		field, err := LoadRegion(files[idx], region)
		if err != nil {
			return nil, err
		}
		stack.Fields = append(stack.Fields, field)
	}
	return stack, nil
}
