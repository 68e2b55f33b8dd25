// Package main provides the entry point for the poisson-editor command.
package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"poisson-editor/internal/cache"
	"poisson-editor/internal/config"
	edimage "poisson-editor/internal/image"
	"poisson-editor/internal/inpaint"
	"poisson-editor/internal/logging"
	"poisson-editor/internal/poisson"
	"poisson-editor/internal/project"
	"poisson-editor/internal/server"
	"poisson-editor/internal/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "poisson-editor",
		Short:        "Seamless patch blending and exemplar-based region fill",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
			if err != nil {
				return err
			}
			logging.SetLogger(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./poisson.yaml)")

	root.AddCommand(blendCmd(), fillCmd(), runCmd(), serveCmd(), versionCmd())
	return root
}

func blendCmd() *cobra.Command {
	var original, composite, mask, output string
	cmd := &cobra.Command{
		Use:   "blend",
		Short: "Blend pasted patches into the original image",
		RunE: func(cmd *cobra.Command, args []string) error {
			images, err := loadImages(original, composite, mask)
			if err != nil {
				return err
			}
			res, err := poisson.NewSolver(cfg.Blend.Options()).Solve(images[0], images[1], images[2])
			if err != nil {
				return err
			}
			if err := edimage.Save(output, res.Image); err != nil {
				return err
			}
			logging.L().Info("blend written",
				zap.String("output", output),
				zap.Int("variables", res.Variables),
				zap.String("method", string(res.Method)),
				zap.Bool("fallback", res.Fallback))
			if res.Fallback {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: patches overlap, wrote the unblended composite")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&original, "original", "", "original image")
	cmd.Flags().StringVar(&composite, "composite", "", "image with patches pasted in")
	cmd.Flags().StringVar(&mask, "mask", "", "region mask, one brightness label per patch")
	cmd.Flags().StringVarP(&output, "output", "o", "blended.png", "output PNG")
	for _, name := range []string{"original", "composite", "mask"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func fillCmd() *cobra.Command {
	var imagePath, maskPath, output string
	var maxPixels int
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Erase the masked region and synthesize it from the rest of the image",
		RunE: func(cmd *cobra.Command, args []string) error {
			images, err := loadImages(imagePath, maskPath)
			if err != nil {
				return err
			}
			params := cfg.Fill.Params()
			if cmd.Flags().Changed("max-pixels") {
				params.MaxFilledPixels = maxPixels
			}
			params.Progress = func(p inpaint.Progress) {
				if p.Round%100 == 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "\rround %d, %d pixels left", p.Round, p.Remaining)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			res, err := inpaint.FillContext(ctx, images[0], edimage.MaskFromImage(images[1]), params)
			fmt.Fprintln(cmd.ErrOrStderr())
			if res == nil {
				return err
			}
			// A cancelled fill still writes what was synthesized so far.
			if serr := edimage.Save(output, res.Image); serr != nil {
				return serr
			}
			if err != nil {
				return err
			}
			if !res.Complete() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d pixels could not be filled\n", res.Remaining)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "input image")
	cmd.Flags().StringVar(&maskPath, "mask", "", "region to erase, nonzero pixels")
	cmd.Flags().StringVarP(&output, "output", "o", "filled.png", "output PNG")
	cmd.Flags().IntVar(&maxPixels, "max-pixels", 0, "stop after this many pixels (0 = no limit)")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("mask")
	return cmd
}

func runCmd() *cobra.Command {
	var watch bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "run <job.pjob>",
		Short: "Execute a job file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			runner := &project.Runner{
				Solver: poisson.NewSolver(cfg.Blend.Options()),
				Fill:   cfg.Fill.Params(),
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out, err := runner.Run(ctx, path)
			if err != nil && !watch {
				return err
			}
			report(cmd, out, err)
			if !watch {
				return nil
			}
			return watchJob(ctx, cmd, runner, path, interval)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rerun whenever the job or its inputs change")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "watch poll interval")
	return cmd
}

// watchJob reruns the job until ctx is cancelled. The watched set is rebuilt
// after every run because the job may name different inputs.
func watchJob(ctx context.Context, cmd *cobra.Command, runner *project.Runner, path string, interval time.Duration) error {
	changed := make(chan string, 1)
	for {
		paths := []string{path}
		if job, err := project.Load(path); err == nil {
			paths = append(paths, job.Inputs(path)...)
		}
		w := project.NewWatcher(interval, paths...)
		w.OnChange(func(p string) {
			select {
			case changed <- p:
			default:
			}
		})
		w.Start()

		select {
		case <-ctx.Done():
			w.Stop()
			return nil
		case p := <-changed:
			w.Stop()
			logging.L().Info("input changed", zap.String("path", p))
			out, err := runner.Run(ctx, path)
			report(cmd, out, err)
		}
	}
}

func report(cmd *cobra.Command, out *project.Outcome, err error) {
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s", out.Output)
	switch {
	case out.Fallback:
		fmt.Fprint(cmd.OutOrStdout(), " (patches overlap, unblended)")
	case out.Remaining > 0:
		fmt.Fprintf(cmd.OutOrStdout(), " (%d pixels unfilled)", out.Remaining)
	}
	fmt.Fprintln(cmd.OutOrStdout())
}

func serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var store cache.Store
			if cfg.Redis.Enabled {
				rdb := cache.NewRedis(cfg.Redis)
				defer rdb.Close()
				pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				err := rdb.Ping(pingCtx)
				cancel()
				if err != nil {
					logging.L().Warn("redis unavailable, result cache disabled",
						zap.String("addr", cfg.Redis.Addr), zap.Error(err))
				} else {
					store = rdb
				}
			}

			logging.L().Info("poisson-editor", zap.Any("version", version.Info()))
			return server.New(cfg, store).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen address, overrides server.port")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func loadImages(paths ...string) ([]image.Image, error) {
	images := make([]image.Image, len(paths))
	for i, p := range paths {
		img, err := edimage.Load(p)
		if err != nil {
			return nil, err
		}
		images[i] = img
	}
	return images, nil
}
