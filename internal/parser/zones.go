package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// LoadZones reads the zone descriptor and checks every region against the grid
// size. Each name in required must be present.
func LoadZones(path string, required ...string) (*ZoneConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading zone config %s: %v", ErrConfig, path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing zone config %s: %v", ErrConfig, path, err)
	}

	sizeRaw, ok := raw["size"]
	if !ok {
		return nil, fmt.Errorf("%w: %s: missing \"size\"", ErrConfig, path)
	}
	var size []int
	if err := json.Unmarshal(sizeRaw, &size); err != nil || len(size) != 2 {
		return nil, fmt.Errorf("%w: %s: \"size\" must be [height, width]", ErrConfig, path)
	}
	if size[0] <= 0 || size[1] <= 0 {
		return nil, fmt.Errorf("%w: %s: size %v must be positive", ErrConfig, path, size)
	}

	zc := &ZoneConfig{
		Path:    path,
		Height:  size[0],
		Width:   size[1],
		Regions: make(map[string]Region),
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		if name != "size" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var coords []int
		if err := json.Unmarshal(raw[name], &coords); err != nil || len(coords) != 4 {
			// Unrelated keys are tolerated unless someone asks for them.
			continue
		}
		r := Region{YMin: coords[0], YMax: coords[1], XMin: coords[2], XMax: coords[3]}
		if err := zc.checkRegion(name, r); err != nil {
			return nil, err
		}
		zc.Regions[name] = r
	}

	for _, name := range required {
		if _, ok := zc.Regions[name]; !ok {
			return nil, fmt.Errorf("%w: %s: missing region %q", ErrConfig, path, name)
		}
	}
	return zc, nil
}

func (z *ZoneConfig) checkRegion(name string, r Region) error {
	if r.YMin < 0 || r.YMin >= r.YMax || r.YMax > z.Height {
		return fmt.Errorf("%w: %s: region %q rows %d:%d outside 0:%d", ErrConfig, z.Path, name, r.YMin, r.YMax, z.Height)
	}
	if r.XMin < 0 || r.XMin >= r.XMax || r.XMax > z.Width {
		return fmt.Errorf("%w: %s: region %q cols %d:%d outside 0:%d", ErrConfig, z.Path, name, r.XMin, r.XMax, z.Width)
	}
	return nil
}
