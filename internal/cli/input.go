package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/standproj/pkg/types"
)

// inputFile is the YAML projection request read by the project command.
type inputFile struct {
	Parameters types.Parameters      `yaml:"parameters"`
	Polygons   []types.PolygonRecord `yaml:"polygons"`
}

var (
	errNoPolygons       = errors.New("input has no polygons")
	errDuplicatePolygon = errors.New("duplicate polygon id")
)

// readInput decodes a projection request from path, or from stdin when path
// is "-". Unknown keys and repeated polygon ids are rejected.
func readInput(path string, stdin io.Reader) (types.Parameters, []types.PolygonView, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return types.Parameters{}, nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var in inputFile
	if err := dec.Decode(&in); err != nil {
		return types.Parameters{}, nil, fmt.Errorf("decode input %s: %w", path, err)
	}
	if len(in.Polygons) == 0 {
		return types.Parameters{}, nil, errNoPolygons
	}

	polygons := make([]types.PolygonView, 0, len(in.Polygons))
	seen := make(map[string]int, len(in.Polygons))
	for i, rec := range in.Polygons {
		p, err := types.NewPolygon(rec)
		if err != nil {
			return types.Parameters{}, nil, fmt.Errorf("polygon %d: %w", i+1, err)
		}
		if first, ok := seen[p.ID()]; ok {
			return types.Parameters{}, nil, fmt.Errorf("polygon %d: %w %q (first used by polygon %d)", i+1, errDuplicatePolygon, p.ID(), first)
		}
		seen[p.ID()] = i + 1
		polygons = append(polygons, p)
	}
	return in.Parameters, polygons, nil
}
