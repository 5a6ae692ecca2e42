package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/panorama/internal/homography"
)

// ErrNoCorrespondences is returned for a points file that contains no points.
var ErrNoCorrespondences = errors.New("no correspondences in points file")

// FileProvider reads correspondences from a YAML or JSON file. Two layouts
// are accepted:
//
//	image_a: [{x: 10, y: 20}, ...]
//	image_b: [[110, 25], ...]
//
// or
//
//	pairs:
//	  - {a: {x: 10, y: 20}, b: [110, 25]}
//
// Points are either {x, y} mappings or two-element sequences.
type FileProvider struct {
	Path string
}

// Correspondences loads and parses the file.
func (p FileProvider) Correspondences(ctx context.Context) ([]homography.Correspondence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(p.Path)
}

// LoadFile reads a points file from disk.
func LoadFile(path string) ([]homography.Correspondence, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: points file path is user supplied
	if err != nil {
		return nil, fmt.Errorf("failed to read points file: %w", err)
	}
	corrs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return corrs, nil
}

// Parse decodes a points document. JSON input is valid YAML and is handled
// by the same decoder.
func Parse(data []byte) ([]homography.Correspondence, error) {
	var doc pointsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse points: %w", err)
	}

	hasLists := len(doc.ImageA) > 0 || len(doc.ImageB) > 0
	if hasLists && len(doc.Pairs) > 0 {
		return nil, errors.New("points file must use either image_a/image_b or pairs, not both")
	}

	var corrs []homography.Correspondence
	if len(doc.Pairs) > 0 {
		corrs = make([]homography.Correspondence, len(doc.Pairs))
		for i, pr := range doc.Pairs {
			corrs[i] = homography.Correspondence{A: homography.Point(pr.A), B: homography.Point(pr.B)}
		}
	} else {
		corrs = homography.Pair(toPoints(doc.ImageA), toPoints(doc.ImageB))
	}
	if len(corrs) == 0 {
		return nil, ErrNoCorrespondences
	}
	return corrs, nil
}

// Marshal encodes correspondences in the pairs layout.
func Marshal(corrs []homography.Correspondence) ([]byte, error) {
	doc := pointsFile{Pairs: make([]filePair, len(corrs))}
	for i, c := range corrs {
		doc.Pairs[i] = filePair{A: filePoint(c.A), B: filePoint(c.B)}
	}
	return yaml.Marshal(doc)
}

type pointsFile struct {
	ImageA []filePoint `yaml:"image_a,omitempty"`
	ImageB []filePoint `yaml:"image_b,omitempty"`
	Pairs  []filePair  `yaml:"pairs,omitempty"`
}

type filePair struct {
	A filePoint `yaml:"a"`
	B filePoint `yaml:"b"`
}

type filePoint homography.Point

// UnmarshalYAML accepts {x: 1, y: 2} and [1, 2].
func (p *filePoint) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var xy []float64
		if err := node.Decode(&xy); err != nil {
			return err
		}
		if len(xy) != 2 {
			return fmt.Errorf("line %d: point needs exactly 2 coordinates, got %d", node.Line, len(xy))
		}
		p.X, p.Y = xy[0], xy[1]
		return p.checkFinite(node)
	case yaml.MappingNode:
		var m struct {
			X *float64 `yaml:"x"`
			Y *float64 `yaml:"y"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		if m.X == nil || m.Y == nil {
			return fmt.Errorf("line %d: point needs both x and y", node.Line)
		}
		p.X, p.Y = *m.X, *m.Y
		return p.checkFinite(node)
	default:
		return fmt.Errorf("line %d: point must be a mapping or a sequence", node.Line)
	}
}

func (p *filePoint) checkFinite(node *yaml.Node) error {
	for _, v := range []float64{p.X, p.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("line %d: point coordinates must be finite, got (%g, %g)", node.Line, p.X, p.Y)
		}
	}
	return nil
}

// MarshalYAML writes the mapping form.
func (p filePoint) MarshalYAML() (interface{}, error) {
	return homography.Point(p), nil
}

func toPoints(in []filePoint) []homography.Point {
	out := make([]homography.Point, len(in))
	for i, p := range in {
		out[i] = homography.Point(p)
	}
	return out
}
