// Command kmscursor shows a background with a text banner and moves a
// pointer across it, one atomic commit per frame.
package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NeowayLabs/drmkit"
	"github.com/NeowayLabs/drmkit/gbm"
	"github.com/NeowayLabs/drmkit/kms"
)

type flags struct {
	config *string
	device *string
	frames *int
	gbm    *bool
	debug  *bool
}

func newFlags(fs *flag.FlagSet) *flags {
	return &flags{
		config: fs.String(
			"config",
			"",
			"Path to the config file. Default is the first "+configName+" in the XDG config directories",
		),
		device: fs.String("device", "", "DRM node, overrides the config"),
		frames: fs.Int("frames", 0, "Stop after that many frames, overrides the config"),
		gbm:    fs.Bool("gbm", false, "Allocate the cursor with GBM"),
		debug:  fs.Bool("debug", false, "Log at debug level"),
	}
}

func main() {
	fl := newFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := loadConfig(*fl.config)
	if err != nil {
		logrus.WithError(err).Fatal("loading config")
	}
	if err := fl.apply(flag.CommandLine, cfg); err != nil {
		logrus.WithError(err).Fatal("invalid flags")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).WithField("log_level", cfg.LogLevel).Fatal("invalid log level")
	}
	logrus.SetLevel(level)

	if err := run(cfg, logrus.StandardLogger()); err != nil {
		logrus.WithError(err).Fatal("kmscursor")
	}
}

// apply overrides cfg with the flags set on fs and validates the result.
func (fl *flags) apply(fs *flag.FlagSet, cfg *Config) error {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = *fl.device
		case "frames":
			cfg.Frames = *fl.frames
		case "gbm":
			cfg.UseGBM = *fl.gbm
		case "debug":
			if *fl.debug {
				cfg.LogLevel = "debug"
			}
		}
	})
	return cfg.validate()
}

func run(cfg *Config, log logrus.FieldLogger) error {
	opts := []kms.Option{kms.WithLogger(log)}
	if cfg.UseGBM {
		opts = append(opts, kms.WithAllocator(gbm.NewAllocator))
	}
	dev, err := kms.Open(cfg.Device, opts...)
	if err != nil {
		return err
	}
	defer dev.Close()

	out, err := dev.OpenFirstConnectedOutput()
	if err != nil {
		return err
	}
	defer out.Close()
	w, h := out.Size()

	bg, err := dev.CreateDumbBuffer(uint32(w), uint32(h), 32, drm.FormatXRGB8888, drm.ModifierInvalid)
	if err != nil {
		return err
	}
	defer bg.Close()
	if err := bg.Fill(cfg.Background); err != nil {
		return err
	}
	if cfg.Banner != "" {
		err := drawOn(bg, func(img *kms.Image) error {
			return drawBanner(img, cfg.Banner, cfg.FontSize)
		})
		if err != nil {
			return err
		}
	}

	cursor, err := newCursor(dev, cfg.UseGBM, log)
	if err != nil {
		return err
	}
	defer cursor.Close()

	return animate(out, bg, cursor, cfg, log)
}

// newCursor allocates the pointer image at the size the driver asks
// for, falling back to a dumb buffer when GBM cannot provide one.
func newCursor(dev *kms.Device, useGBM bool, log logrus.FieldLogger) (*kms.Buffer, error) {
	w, h, ok := dev.DesiredCursorSize()
	if !ok {
		w, h = 64, 64
	}

	var (
		cursor *kms.Buffer
		err    error
	)
	if useGBM {
		cursor, err = dev.CreateGBMBuffer(w, h, drm.FormatARGB8888, nil, gbm.BOUseCursor|gbm.BOUseWrite)
		if err != nil {
			log.WithError(err).Warn("no GBM cursor, using a dumb buffer")
		}
	}
	if cursor == nil {
		cursor, err = dev.CreateDumbBuffer(w, h, 32, drm.FormatARGB8888, drm.ModifierInvalid)
		if err != nil {
			return nil, err
		}
	}

	if err := cursor.Fill(0); err != nil {
		cursor.Close()
		return nil, err
	}
	err = drawOn(cursor, func(img *kms.Image) error {
		drawArrow(img)
		return nil
	})
	if err != nil {
		cursor.Close()
		return nil, err
	}
	return cursor, nil
}

func animate(out *kms.Output, bg, cursor *kms.Buffer, cfg *Config, log logrus.FieldLogger) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	ticker := time.NewTicker(time.Duration(cfg.IntervalMS) * time.Millisecond)
	defer ticker.Stop()

	var (
		w, h   = out.Size()
		screen = image.Rect(0, 0, w, h)
		p      = pointer{x: w / 2, y: h / 2, dx: cfg.Speed, dy: cfg.Speed}
	)
	failed := 0
	for frame := 0; cfg.Frames == 0 || frame < cfg.Frames; frame++ {
		c := kms.NewComposition()
		c.AddLayer(bg, screen, screen)
		c.AddPointerLayer(cursor, 0, 0, p.x, p.y)

		if err := out.Present(c); err != nil {
			failed++
			log.WithError(err).WithField("frame", frame).Warn("frame dropped")
			if failed > 10 {
				return fmt.Errorf("giving up after %d failed frames: %w", failed, err)
			}
		} else {
			failed = 0
			if idx := out.NeedsComposition(); len(idx) > 0 {
				log.WithFields(logrus.Fields{
					"frame":  frame,
					"layers": idx,
				}).Debug("layers without a plane")
			}
		}
		p.step(w, h)

		select {
		case <-ticker.C:
		case s := <-sig:
			log.WithField("signal", s).Info("stopping")
			return nil
		}
	}
	return nil
}

// pointer bounces off the output edges.
type pointer struct {
	x, y   int
	dx, dy int
}

func (p *pointer) step(w, h int) {
	p.x, p.dx = bounce(p.x, p.dx, w)
	p.y, p.dy = bounce(p.y, p.dy, h)
}

func bounce(pos, delta, limit int) (int, int) {
	pos += delta
	if pos < 0 {
		return -pos, -delta
	}
	if pos >= limit {
		return 2*(limit-1) - pos, -delta
	}
	return pos, delta
}
