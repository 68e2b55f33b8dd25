package image

import (
	"image"
	"image/color"
	"sort"
)

// MaxLayers is the number of patches a region mask can label. Label values
// are stored as 8-bit brightness, 0 being the background.
const MaxLayers = 255

// Composite pastes patch layers over a canvas.
type Composite struct {
	Canvas image.Image
	Layers []*Layer
}

// NewComposite creates a Composite over canvas.
func NewComposite(canvas image.Image) *Composite {
	return &Composite{Canvas: canvas}
}

// AddLayer adds a patch on top of the existing ones.
func (c *Composite) AddLayer(layer *Layer) {
	if len(c.Layers) > 0 {
		top := c.Layers[0].Z
		for _, l := range c.Layers[1:] {
			top = max(top, l.Z)
		}
		if layer.Z <= top {
			layer.Z = top + 0.1
		}
	}
	c.Layers = append(c.Layers, layer)
}

// Render pastes every layer over a copy of the canvas in ascending Z order.
// It returns the naive composite and a grey region mask in which the opaque
// pixels of the i-th layer (1-based, after sorting) have brightness i. Later
// layers overwrite earlier ones in both outputs. Layers beyond MaxLayers are
// skipped.
func (c *Composite) Render() (*image.RGBA, *image.Gray) {
	result := ToRGBA(c.Canvas)
	bounds := result.Bounds()
	regions := image.NewGray(bounds)

	layers := make([]*Layer, 0, len(c.Layers))
	for _, l := range c.Layers {
		if l != nil && l.Image != nil {
			layers = append(layers, l)
		}
	}
	sort.SliceStable(layers, func(i, j int) bool { return layers[i].Z < layers[j].Z })
	if len(layers) > MaxLayers {
		layers = layers[:MaxLayers]
	}

	for i, l := range layers {
		label := color.Gray{Y: uint8(i + 1)}
		src := l.Image.Bounds()
		for y := 0; y < src.Dy(); y++ {
			dstY := y + l.OffsetY
			if dstY < 0 || dstY >= bounds.Dy() {
				continue
			}
			for x := 0; x < src.Dx(); x++ {
				dstX := x + l.OffsetX
				if dstX < 0 || dstX >= bounds.Dx() || !l.Opaque(x, y) {
					continue
				}
				result.Set(dstX, dstY, opaque(l.Image.At(src.Min.X+x, src.Min.Y+y)))
				regions.SetGray(dstX, dstY, label)
			}
		}
	}

	return result, regions
}

// Paste is a convenience for the common single-patch case.
func Paste(canvas, patch image.Image, offsetX, offsetY int) (*image.RGBA, *image.Gray) {
	c := NewComposite(canvas)
	c.AddLayer(NewLayer(patch, offsetX, offsetY))
	return c.Render()
}

func opaque(c color.Color) color.RGBA {
	r, g, b, _ := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}
}
