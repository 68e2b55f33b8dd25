// Package project provides job file handling and persistence.
//
// A job file (.pjob) describes one blend or fill with its input images. Paths
// inside it are relative to the job file unless absolute.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"poisson-editor/pkg/geometry"
)

// Job kinds.
const (
	KindBlend = "blend"
	KindFill  = "fill"
)

// ErrInvalidJob is returned when a job file is missing required fields.
var ErrInvalidJob = errors.New("invalid job")

// File represents a job file.
type File struct {
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
	Kind        string    `json:"kind"`
	Description string    `json:"description,omitempty"`

	// Output image path (relative to job file); defaults to <job>_out.png
	OutputPath string `json:"output,omitempty"`

	Blend *BlendJob `json:"blend,omitempty"`
	Fill  *FillJob  `json:"fill,omitempty"`
}

// BlendJob pastes patches over a canvas and blends them in.
type BlendJob struct {
	CanvasPath string  `json:"canvas"`
	Patches    []Patch `json:"patches"`
}

// Patch is one pasted image. Its shape is the whole image, the nonzero
// pixels of MaskPath, or the inside of Lasso (patch coordinates), in that
// order of preference.
type Patch struct {
	ImagePath string             `json:"image"`
	MaskPath  string             `json:"mask,omitempty"`
	Lasso     []geometry.Point2D `json:"lasso,omitempty"`
	X         int                `json:"x"`
	Y         int                `json:"y"`
	Z         float64            `json:"z,omitempty"`
}

// FillJob erases the union of the mask image and lasso selections.
type FillJob struct {
	ImagePath string               `json:"image"`
	MaskPath  string               `json:"mask,omitempty"`
	Lassos    [][]geometry.Point2D `json:"lassos,omitempty"`
	MaxPixels int                  `json:"max_pixels,omitempty"`
}

// New creates a new job file of the given kind.
func New(name, kind string) *File {
	now := time.Now()
	f := &File{
		Version:  1,
		Name:     name,
		Created:  now,
		Modified: now,
		Kind:     kind,
	}
	switch kind {
	case KindBlend:
		f.Blend = &BlendJob{}
	case KindFill:
		f.Fill = &FillJob{}
	}
	return f
}

// Load loads a job from a file and validates it.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var job File
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job %s: %w", path, err)
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &job, nil
}

// Save saves the job to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks that the job names the inputs its kind needs.
func (p *File) Validate() error {
	switch p.Kind {
	case KindBlend:
		if p.Blend == nil || p.Blend.CanvasPath == "" {
			return fmt.Errorf("%w: blend job without canvas", ErrInvalidJob)
		}
		for i, patch := range p.Blend.Patches {
			if patch.ImagePath == "" {
				return fmt.Errorf("%w: patch %d has no image", ErrInvalidJob, i)
			}
		}
	case KindFill:
		if p.Fill == nil || p.Fill.ImagePath == "" {
			return fmt.Errorf("%w: fill job without image", ErrInvalidJob)
		}
		if p.Fill.MaskPath == "" && len(p.Fill.Lassos) == 0 {
			return fmt.Errorf("%w: fill job without mask or lasso", ErrInvalidJob)
		}
		if p.Fill.MaxPixels < 0 {
			return fmt.Errorf("%w: negative max_pixels", ErrInvalidJob)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidJob, p.Kind)
	}
	return nil
}

// Rel returns target relative to the job file directory, or target itself
// when no relative path exists.
func Rel(jobPath, target string) string {
	rel, err := filepath.Rel(filepath.Dir(jobPath), target)
	if err != nil {
		return target
	}
	return rel
}

// Resolve returns the absolute path of a path stored in the job file.
func Resolve(jobPath, stored string) string {
	if stored == "" {
		return ""
	}
	if filepath.IsAbs(stored) {
		return stored
	}
	return filepath.Join(filepath.Dir(jobPath), stored)
}

// GetOutputPath returns the absolute path to the output image.
func (p *File) GetOutputPath(jobPath string) string {
	if p.OutputPath == "" {
		// Default: job_name_out.png
		base := jobPath[:len(jobPath)-len(filepath.Ext(jobPath))]
		return base + "_out.png"
	}
	return Resolve(jobPath, p.OutputPath)
}

// Inputs lists the absolute paths of every file the job reads.
func (p *File) Inputs(jobPath string) []string {
	var paths []string
	add := func(s string) {
		if s != "" {
			paths = append(paths, Resolve(jobPath, s))
		}
	}
	if p.Blend != nil {
		add(p.Blend.CanvasPath)
		for _, patch := range p.Blend.Patches {
			add(patch.ImagePath)
			add(patch.MaskPath)
		}
	}
	if p.Fill != nil {
		add(p.Fill.ImagePath)
		add(p.Fill.MaskPath)
	}
	return paths
}
