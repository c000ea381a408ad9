package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

// File is the on-disk layout read by FileSource:
//
//	pois:
//	  - id: hq
//	    name: Headquarters
//	    latitude: 37.3382
//	    longitude: -121.8863
//	    radius_m: 150
type File struct {
	POIs []types.POI `yaml:"pois"`
}

// FileSource reads POIs from a YAML file. The file is re-read on every
// fetch so edits are picked up by the next refresh.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) FetchPOIs(ctx context.Context) ([]types.POI, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read poi file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse poi file %s: %w", s.Path, err)
	}
	if err := types.ValidatePOIs(f.POIs); err != nil {
		return nil, fmt.Errorf("poi file %s: %w", s.Path, err)
	}
	if f.POIs == nil {
		f.POIs = []types.POI{}
	}
	return f.POIs, nil
}
