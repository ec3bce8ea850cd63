// Package main is the entry point for the model viewer.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/Faultbox/modelkit/internal/config"
	"github.com/Faultbox/modelkit/internal/engine/camera"
	"github.com/Faultbox/modelkit/internal/engine/gpu/glctx"
	"github.com/Faultbox/modelkit/internal/engine/model"
	"github.com/Faultbox/modelkit/internal/engine/window"
	"github.com/Faultbox/modelkit/internal/logger"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	path, err := scenePath()
	if err != nil {
		if !errors.Is(err, dialog.ErrCancelled) {
			logger.Error("no scene selected", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, path); err != nil {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}
}

// scenePath returns the positional argument or asks with a file dialog.
func scenePath() (string, error) {
	if args := config.Args(); len(args) > 0 {
		return args[0], nil
	}
	return dialog.File().
		Filter("Scenes", "obj", "gltf", "glb").
		Filter("All Files", "*").
		Title("Open Scene").
		Load()
}

func run(cfg *config.Config, path string) error {
	opts, err := cfg.ModelOptions()
	if err != nil {
		return err
	}

	win, err := window.New(window.Config{
		Title:      "modelview",
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Fullscreen: cfg.Window.Fullscreen,
		VSync:      cfg.Window.VSync,
	})
	if err != nil {
		return err
	}
	defer win.Close()

	ctx, err := glctx.New()
	if err != nil {
		return err
	}
	glVersion, glslVersion := ctx.Version()
	logger.Info("OpenGL initialized", zap.String("version", glVersion), zap.String("glsl", glslVersion))

	loader := model.NewLoader(ctx, opts)

	// Parsing runs off the context thread; only Build touches GL
	imports := model.NewImportQueue(loader)
	defer imports.Close()
	imports.Load(path)

	var (
		current *model.Model
		cam     = camera.NewOrbitCamera()
		spin    = true
	)
	defer func() {
		if current != nil {
			current.Destroy()
		}
	}()

	for {
		ev := win.PollEvents()
		if ev.Quit {
			return nil
		}
		for _, p := range ev.Dropped {
			imports.Load(p)
		}
		if ev.DragX != 0 || ev.DragY != 0 {
			spin = false
			cam.HandleDrag(ev.DragX, ev.DragY)
		}
		cam.HandleZoom(ev.Scroll)

		select {
		case res := <-imports.Results():
			if res.Err != nil {
				logger.Error("import failed", zap.String("path", res.Path), zap.Error(res.Err))
				break
			}
			m, err := loader.Build(res.Scene)
			if err != nil {
				logger.Error("build failed", zap.String("path", res.Path), zap.Error(err))
				break
			}
			if current != nil {
				current.Destroy()
			}
			current = m
			b := m.Bounds()
			cam.FitToBounds(b.Min, b.Max)
			spin = true
			win.SetTitle("modelview - " + filepath.Base(res.Path))
		default:
		}

		w, h := win.DrawableSize()
		ctx.BeginFrame(w, h, [3]float32{0.15, 0.15, 0.2})
		if current != nil && h > 0 {
			if err := current.Render(cam.ViewProjection(float32(w) / float32(h))); err != nil {
				logger.Error("render failed", zap.Error(err))
			}
		}
		if spin {
			cam.RotationY += 0.01
		}
		win.SwapBuffers()
	}
}
