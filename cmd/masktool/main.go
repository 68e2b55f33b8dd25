// Command masktool rasterizes lasso polygons into PNG region masks and prints
// statistics about existing masks.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	edimage "poisson-editor/internal/image"
	"poisson-editor/pkg/bitmask"
	"poisson-editor/pkg/geometry"
)

func main() {
	points := flag.String("points", "", "Lasso vertices as 'x,y x,y ...'")
	jsonPath := flag.String("json", "", "JSON file with a list of lassos, each a list of {\"x\":..,\"y\":..}")
	size := flag.String("size", "", "Canvas size WxH (default: image size or lasso bounds)")
	like := flag.String("like", "", "Take the canvas size from this image")
	out := flag.String("o", "mask.png", "Output PNG")
	stats := flag.String("stats", "", "Print statistics for an existing mask image and exit")
	flag.Parse()

	if *stats != "" {
		if err := printStats(*stats); err != nil {
			fmt.Fprintf(os.Stderr, "stats: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var lassos [][]geometry.Point2D
	if *points != "" {
		lasso, err := parsePoints(*points)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Bad -points: %v\n", err)
			os.Exit(1)
		}
		lassos = append(lassos, lasso)
	}
	if *jsonPath != "" {
		data, err := os.ReadFile(*jsonPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *jsonPath, err)
			os.Exit(1)
		}
		var loaded [][]geometry.Point2D
		if err := json.Unmarshal(data, &loaded); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse %s: %v\n", *jsonPath, err)
			os.Exit(1)
		}
		lassos = append(lassos, loaded...)
	}
	if len(lassos) == 0 {
		fmt.Println("Usage: masktool (-points 'x,y x,y ...' | -json lassos.json) [-size WxH | -like img] [-o mask.png]")
		fmt.Println("       masktool -stats mask.png")
		os.Exit(1)
	}

	w, h, err := canvasSize(*size, *like, lassos)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	sel := edimage.NewSelection(w, h)
	for i, lasso := range lassos {
		if err := sel.AddLasso(lasso); err != nil {
			fmt.Fprintf(os.Stderr, "Lasso %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	if err := edimage.Save(*out, edimage.MaskImage(sel.Mask())); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *out)
	describe(sel.Mask())
}

// parsePoints parses "x,y x,y ..." (semicolons also separate points).
func parsePoints(s string) ([]geometry.Point2D, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ';' })
	pts := make([]geometry.Point2D, 0, len(fields))
	for _, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return nil, fmt.Errorf("point %q is not x,y", f)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, err
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, err
		}
		pts = append(pts, geometry.NewPoint2D(x, y))
	}
	if len(pts) < 3 {
		return nil, fmt.Errorf("need at least 3 points, got %d", len(pts))
	}
	return pts, nil
}

func canvasSize(size, like string, lassos [][]geometry.Point2D) (int, int, error) {
	switch {
	case size != "":
		ws, hs, ok := strings.Cut(size, "x")
		w, werr := strconv.Atoi(ws)
		h, herr := strconv.Atoi(hs)
		if !ok || werr != nil || herr != nil || w <= 0 || h <= 0 {
			return 0, 0, fmt.Errorf("bad -size %q, want WxH", size)
		}
		return w, h, nil
	case like != "":
		img, err := edimage.Load(like)
		if err != nil {
			return 0, 0, err
		}
		return img.Bounds().Dx(), img.Bounds().Dy(), nil
	}
	// Lasso bounds measured from the origin
	var all []geometry.Point2D
	for _, l := range lassos {
		all = append(all, l...)
	}
	r := geometry.AlignedRect(all)
	return r.X + r.Width, r.Y + r.Height, nil
}

func printStats(path string) error {
	img, err := edimage.Load(path)
	if err != nil {
		return err
	}
	fmt.Printf("=== %s ===\n", path)
	describe(edimage.MaskFromImage(img))
	return nil
}

func describe(m *bitmask.Mask) {
	n := m.Count()
	total := m.Width() * m.Height()
	fmt.Printf("Size:     %dx%d\n", m.Width(), m.Height())
	fmt.Printf("Selected: %d pixels (%.2f%%)\n", n, 100*float64(n)/float64(max(total, 1)))
	if n == 0 {
		return
	}
	b := bounds(m)
	fmt.Printf("Bounds:   (%d,%d)-(%d,%d)\n", b.Min.X, b.Min.Y, b.Max.X-1, b.Max.Y-1)
}

// bounds returns the smallest rectangle holding every set pixel.
func bounds(m *bitmask.Mask) image.Rectangle {
	r := image.Rectangle{Min: image.Pt(m.Width(), m.Height())}
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			if m.Get(x, y) {
				r.Min.X, r.Min.Y = min(r.Min.X, x), min(r.Min.Y, y)
				r.Max.X, r.Max.Y = max(r.Max.X, x+1), max(r.Max.Y, y+1)
			}
		}
	}
	return r
}
