package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"

	"poisson-editor/internal/cache"
	edimage "poisson-editor/internal/image"
	"poisson-editor/internal/inpaint"
	"poisson-editor/internal/logging"
	"poisson-editor/internal/poisson"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Blend handles POST /api/v1/blend with multipart files original, composite
// and mask. It answers with the blended PNG.
func (s *Server) Blend(c *gin.Context) {
	data, err := readUploads(c, "original", "composite", "mask")
	if err != nil {
		badRequest(c, "please upload original, composite and mask images", err)
		return
	}

	key := cache.Key("blend", "", data...)
	if png := s.cached(c.Request.Context(), key); png != nil {
		c.Header(HeaderBlendFallback, "false")
		s.sendPNG(c, key, png, true)
		return
	}

	imgs, err := decodeAll(c.Request.Context(), data)
	if err != nil {
		badRequest(c, "failed to decode image", err)
		return
	}

	release, err := s.acquire(c.Request.Context())
	if err != nil {
		unavailable(c, err)
		return
	}
	res, err := s.solver.Solve(imgs[0], imgs[1], imgs[2])
	release()
	if err != nil {
		failed(c, "blend failed", err)
		return
	}

	png, err := edimage.EncodePNG(res.Image)
	if err != nil {
		failed(c, "failed to encode result", err)
		return
	}
	logging.L().Info("blend done",
		zap.String("key", key),
		zap.Int("vars", res.Variables),
		zap.String("method", string(res.Method)),
		zap.Bool("fallback", res.Fallback))

	// A fallback is the naive composite, which is not worth keeping.
	if !res.Fallback {
		s.storeResult(c.Request.Context(), key, png)
	}
	c.Header(HeaderBlendFallback, strconv.FormatBool(res.Fallback))
	s.sendPNG(c, key, png, false)
}

// Fill handles POST /api/v1/fill with multipart files image and mask and an
// optional max_pixels field. Nonzero mask pixels are erased and synthesized.
func (s *Server) Fill(c *gin.Context) {
	data, err := readUploads(c, "image", "mask")
	if err != nil {
		badRequest(c, "please upload image and mask", err)
		return
	}

	params := s.fill
	if v := c.PostForm("max_pixels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "max_pixels must be a non-negative integer", err)
			return
		}
		params.MaxFilledPixels = n
	}

	key := cache.Key("fill", fmt.Sprintf("max=%d", params.MaxFilledPixels), data...)
	if png := s.cached(c.Request.Context(), key); png != nil {
		c.Header(HeaderPixelsRemaining, "0")
		s.sendPNG(c, key, png, true)
		return
	}

	imgs, err := decodeAll(c.Request.Context(), data)
	if err != nil {
		badRequest(c, "failed to decode image", err)
		return
	}

	release, err := s.acquire(c.Request.Context())
	if err != nil {
		unavailable(c, err)
		return
	}
	res, err := inpaint.FillContext(c.Request.Context(), imgs[0], edimage.MaskFromImage(imgs[1]), params)
	release()
	if err != nil {
		failed(c, "fill failed", err)
		return
	}

	png, err := edimage.EncodePNG(res.Image)
	if err != nil {
		failed(c, "failed to encode result", err)
		return
	}
	logging.L().Info("fill done",
		zap.String("key", key),
		zap.Int("rounds", res.Rounds),
		zap.Int("filled", res.Filled),
		zap.Int("remaining", res.Remaining))

	if res.Complete() {
		s.storeResult(c.Request.Context(), key, png)
	}
	c.Header(HeaderPixelsRemaining, strconv.Itoa(res.Remaining))
	s.sendPNG(c, key, png, false)
}

// Result handles GET /api/v1/result/:key.
func (s *Server) Result(c *gin.Context) {
	key := c.Param("key")
	if s.store == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Message: "result cache is disabled"})
		return
	}

	png, err := s.store.Get(c.Request.Context(), key)
	if err != nil {
		logging.L().Error("failed to get result", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Success: false,
			Message: "query failed",
			Error:   err.Error(),
		})
		return
	}
	if png == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Message: "no result for this key"})
		return
	}
	s.sendPNG(c, key, png, true)
}

// cached returns the stored result for key, or nil. Only complete results
// are stored, so a hit never needs a fallback or remaining-pixels report.
func (s *Server) cached(ctx context.Context, key string) []byte {
	if s.store == nil {
		return nil
	}
	png, err := s.store.Get(ctx, key)
	if err != nil {
		logging.L().Warn("failed to get cache", zap.Error(err))
		return nil
	}
	if png != nil {
		logging.L().Info("cache hit", zap.String("key", key))
	}
	return png
}

func (s *Server) storeResult(ctx context.Context, key string, png []byte) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(ctx, key, png); err != nil {
		logging.L().Warn("failed to set cache", zap.String("key", key), zap.Error(err))
	}
}

func (s *Server) sendPNG(c *gin.Context, key string, png []byte, hit bool) {
	c.Header(HeaderResultKey, key)
	if hit {
		c.Header(HeaderCache, "hit")
	} else {
		c.Header(HeaderCache, "miss")
	}
	c.Data(http.StatusOK, "image/png", png)
}

// readUploads reads the named multipart files in order.
func readUploads(c *gin.Context, names ...string) ([][]byte, error) {
	out := make([][]byte, len(names))
	for i, name := range names {
		fh, err := c.FormFile(name)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", name, err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", name, err)
		}
		out[i], err = io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", name, err)
		}
	}
	return out, nil
}

// decodeAll decodes the uploads concurrently.
func decodeAll(ctx context.Context, data [][]byte) ([]image.Image, error) {
	imgs := make([]image.Image, len(data))
	g, _ := errgroup.WithContext(ctx)
	for i, d := range data {
		g.Go(func() error {
			img, err := edimage.Decode(bytes.NewReader(d))
			if err != nil {
				return fmt.Errorf("upload %d: %w", i+1, err)
			}
			imgs[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return imgs, nil
}

func badRequest(c *gin.Context, msg string, err error) {
	resp := ErrorResponse{Success: false, Message: msg}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}

func unavailable(c *gin.Context, err error) {
	logging.L().Warn("request rejected", zap.Error(err))
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{Success: false, Message: err.Error()})
}

// failed reports a solver error with a status matching its cause.
func failed(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, poisson.ErrInvalidGeometry), errors.Is(err, inpaint.ErrInvalidGeometry):
		status = http.StatusBadRequest
	case errors.Is(err, poisson.ErrSingularSystem), errors.Is(err, poisson.ErrNotConverged):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logging.L().Error(msg, zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Success: false, Message: msg, Error: err.Error()})
}
