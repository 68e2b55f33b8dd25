package project

import (
	"context"
	"fmt"
	"image"

	edimage "poisson-editor/internal/image"
	"poisson-editor/internal/inpaint"
	"poisson-editor/internal/logging"
	"poisson-editor/internal/poisson"
	"poisson-editor/pkg/bitmask"
	"poisson-editor/pkg/geometry"

	"go.uber.org/zap"
)

// Runner executes job files.
type Runner struct {
	Solver *poisson.Solver
	Fill   inpaint.Params
}

// Outcome summarizes an executed job.
type Outcome struct {
	Output    string
	Fallback  bool // blend returned the naive composite
	Remaining int  // fill region pixels left unsynthesized
}

// Run loads the job at path, executes it and writes the output image.
func (r *Runner) Run(ctx context.Context, path string) (*Outcome, error) {
	job, err := Load(path)
	if err != nil {
		return nil, err
	}

	var (
		result  image.Image
		outcome = &Outcome{Output: job.GetOutputPath(path)}
	)
	switch job.Kind {
	case KindBlend:
		c, err := job.Composite(path)
		if err != nil {
			return nil, err
		}
		res, err := r.Solver.SolveComposite(c)
		if err != nil {
			return nil, fmt.Errorf("blend %s: %w", job.Name, err)
		}
		result, outcome.Fallback = res.Image, res.Fallback
	case KindFill:
		img, region, err := job.FillInputs(path)
		if err != nil {
			return nil, err
		}
		params := r.Fill
		if job.Fill.MaxPixels > 0 {
			params.MaxFilledPixels = job.Fill.MaxPixels
		}
		res, err := inpaint.FillContext(ctx, img, region, params)
		if err != nil {
			return nil, fmt.Errorf("fill %s: %w", job.Name, err)
		}
		result, outcome.Remaining = res.Image, res.Remaining
	}

	if err := edimage.Save(outcome.Output, result); err != nil {
		return nil, err
	}
	logging.L().Info("job done",
		zap.String("job", path),
		zap.String("kind", job.Kind),
		zap.String("output", outcome.Output),
		zap.Bool("fallback", outcome.Fallback),
		zap.Int("remaining", outcome.Remaining))
	return outcome, nil
}

// Composite loads the canvas and patches of a blend job.
func (p *File) Composite(jobPath string) (*edimage.Composite, error) {
	canvas, err := edimage.Load(Resolve(jobPath, p.Blend.CanvasPath))
	if err != nil {
		return nil, err
	}
	c := edimage.NewComposite(canvas)
	for i, patch := range p.Blend.Patches {
		layer, err := edimage.LoadLayer(Resolve(jobPath, patch.ImagePath))
		if err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		layer.OffsetX, layer.OffsetY, layer.Z = patch.X, patch.Y, patch.Z
		layer.Mask, err = p.patchMask(jobPath, patch, layer.Width(), layer.Height())
		if err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		c.AddLayer(layer)
	}
	return c, nil
}

func (p *File) patchMask(jobPath string, patch Patch, w, h int) (*bitmask.Mask, error) {
	switch {
	case patch.MaskPath != "":
		img, err := edimage.Load(Resolve(jobPath, patch.MaskPath))
		if err != nil {
			return nil, err
		}
		m := edimage.MaskFromImage(img)
		if m.Width() != w || m.Height() != h {
			return nil, fmt.Errorf("%w: mask %dx%d for %dx%d patch",
				bitmask.ErrInvalidGeometry, m.Width(), m.Height(), w, h)
		}
		return m, nil
	case len(patch.Lasso) > 0:
		sel := edimage.NewSelection(w, h)
		if err := sel.AddLasso(patch.Lasso); err != nil {
			return nil, err
		}
		return sel.Mask(), nil
	}
	return nil, nil
}

// FillInputs loads the image of a fill job and builds its region from the
// mask image and lasso selections.
func (p *File) FillInputs(jobPath string) (image.Image, *bitmask.Mask, error) {
	img, err := edimage.Load(Resolve(jobPath, p.Fill.ImagePath))
	if err != nil {
		return nil, nil, err
	}
	b := img.Bounds()
	sel := edimage.NewSelection(b.Dx(), b.Dy())

	if p.Fill.MaskPath != "" {
		maskImg, err := edimage.Load(Resolve(jobPath, p.Fill.MaskPath))
		if err != nil {
			return nil, nil, err
		}
		if err := sel.Add(edimage.MaskFromImage(maskImg), geometry.PointInt{}); err != nil {
			return nil, nil, fmt.Errorf("mask: %w", err)
		}
	}
	for i, lasso := range p.Fill.Lassos {
		if err := sel.AddLasso(lasso); err != nil {
			return nil, nil, fmt.Errorf("lasso %d: %w", i, err)
		}
	}
	return img, sel.Mask(), nil
}
