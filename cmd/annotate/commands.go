package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/getcharzp/go-annotation/annotate"
	"github.com/getcharzp/go-annotation/boxmatch"
	"github.com/getcharzp/go-annotation/detect"
	"github.com/getcharzp/go-annotation/sam2"
	"github.com/sirupsen/logrus"
	"github.com/up-zero/gotool/imageutil"
	"github.com/urfave/cli/v2"
)

func withEngine(c *cli.Context, fn func(*sam2.Engine) error) error {
	engine, err := sam2.NewEngine(sam2Config(c))
	if err != nil {
		return fmt.Errorf("初始化 sam2 引擎失败: %w", err)
	}
	defer func() {
		if err := engine.Destroy(); err != nil {
			logrus.WithError(err).Warn("释放 sam2 引擎失败")
		}
	}()
	return fn(engine)
}

func masksCommand() *cli.Command {
	return &cli.Command{
		Name:  "masks",
		Usage: "generate every mask in an image",
		Flags: append([]cli.Flag{
			imageFlag(),
			outFlag("masks"),
			&cli.StringFlag{Name: flagSegModel, Usage: "use a YOLOv11-seg model instead of SAM2 as the mask source"},
		}, generatorFlags()...),
		Action: func(c *cli.Context) error {
			if c.String(flagSegModel) != "" {
				cfg := detect.DefaultSegConfig()
				cfg.ModelPath = c.String(flagSegModel)
				cfg.OnnxRuntimeLibPath = ortLib(c)
				cfg.UseCuda = c.Bool(flagCuda)
				cfg.NumThreads = c.Int(flagThreads)
				seg, err := detect.NewSegEngine(cfg, logrus.StandardLogger())
				if err != nil {
					return fmt.Errorf("初始化分割引擎失败: %w", err)
				}
				defer seg.Destroy()
				return saveAllMasks(c, seg)
			}
			return withEngine(c, func(engine *sam2.Engine) error {
				return saveAllMasks(c, sam2.NewMaskGenerator(engine, generatorConfig(c), logrus.StandardLogger()))
			})
		},
	}
}

func saveAllMasks(c *cli.Context, gen annotate.Generator) error {
	anns, err := annotate.New(gen, logrus.StandardLogger()).AllMasks(c.String(flagImage))
	if err != nil {
		return err
	}
	paths, err := annotate.SaveMasks(c.String(flagOut), anns)
	if err != nil {
		return err
	}
	for i, ann := range anns {
		logrus.WithFields(logrus.Fields{
			"file":  paths[i],
			"bbox":  ann.BBox,
			"area":  ann.Area,
			"score": ann.PredictedIOU,
		}).Info("mask")
	}
	return nil
}

func matchCommand() *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "select the generated mask whose box is nearest to --box (y0,x0,y1,x1)",
		Flags: append([]cli.Flag{imageFlag(), boxFlag(true), outFlag("mask.png")}, generatorFlags()...),
		Action: func(c *cli.Context) error {
			target, err := parseBox(c.Float64Slice(flagBox))
			if err != nil {
				return err
			}
			return withEngine(c, func(engine *sam2.Engine) error {
				gen := sam2.NewMaskGenerator(engine, generatorConfig(c), logrus.StandardLogger())
				m, err := annotate.New(gen, logrus.StandardLogger()).MaskForBox(c.String(flagImage), target)
				if err != nil {
					return err
				}
				logMatch(m, target)
				return imageutil.Save(c.String(flagOut), m.Mask(), 100)
			})
		},
	}
}

func detectMatchCommand() *cli.Command {
	def := detect.DefaultConfig()
	return &cli.Command{
		Name:  "detect-match",
		Usage: "detect objects with YOLOv11 and match each detection to a generated mask",
		Flags: append([]cli.Flag{
			imageFlag(),
			outFlag("matches"),
			&cli.StringFlag{Name: "yolo-model", Value: def.ModelPath, Usage: "YOLOv11 detection model", EnvVars: []string{"ANNOTATE_YOLO_MODEL"}},
			&cli.Float64Flag{Name: "conf", Value: float64(def.ConfThreshold), Usage: "detection confidence threshold"},
			&cli.IntSliceFlag{Name: "class", Usage: "only keep these COCO class ids"},
		}, generatorFlags()...),
		Action: func(c *cli.Context) error {
			cfg := detect.DefaultConfig()
			cfg.ModelPath = c.String("yolo-model")
			cfg.OnnxRuntimeLibPath = ortLib(c)
			cfg.ConfThreshold = float32(c.Float64("conf"))
			cfg.ClassIDs = c.IntSlice("class")
			cfg.UseCuda = c.Bool(flagCuda)
			cfg.NumThreads = c.Int(flagThreads)

			detector, err := detect.NewEngine(cfg, logrus.StandardLogger())
			if err != nil {
				return fmt.Errorf("初始化检测引擎失败: %w", err)
			}
			defer detector.Destroy()

			imagePath := c.String(flagImage)
			img, err := imageutil.Open(imagePath)
			if err != nil {
				return err
			}
			dets, err := detector.Predict(img)
			if err != nil {
				return err
			}
			if len(dets) == 0 {
				logrus.Warn("没有检测到目标")
				return nil
			}
			targets := make([]boxmatch.Box[float32], len(dets))
			for i, d := range dets {
				targets[i] = d.MatchBox()
			}

			return withEngine(c, func(engine *sam2.Engine) error {
				gen := sam2.NewMaskGenerator(engine, generatorConfig(c), logrus.StandardLogger())
				matches, err := annotate.New(gen, logrus.StandardLogger()).MaskForBoxes(imagePath, targets)
				if err != nil {
					return err
				}
				if err := os.MkdirAll(c.String(flagOut), 0o755); err != nil {
					return err
				}
				for i, m := range matches {
					logMatch(m, targets[i])
					p := filepath.Join(c.String(flagOut), fmt.Sprintf("det_%d_class_%d.png", i, dets[i].ClassID))
					if err := imageutil.Save(p, m.Mask(), 100); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func imageCommand() *cli.Command {
	return &cli.Command{
		Name:  "predict",
		Usage: "segment one object in an image from a box and/or points",
		Flags: append([]cli.Flag{imageFlag(), outFlag("mask.png")}, promptFlags()...),
		Action: func(c *cli.Context) error {
			opts, err := parsePrompt(c)
			if err != nil {
				return err
			}
			return withEngine(c, func(engine *sam2.Engine) error {
				p := sam2.NewImagePredictor(engine, logrus.StandardLogger())
				defer p.Close()
				if err := p.SetImagePath(c.String(flagImage)); err != nil {
					return err
				}
				res, err := p.PredictItem(opts)
				if err != nil {
					return err
				}
				logrus.WithFields(logrus.Fields{"score": res.Score, "area": res.Area()}).Info("mask")
				return imageutil.Save(c.String(flagOut), res.Gray(), 100)
			})
		},
	}
}

func videoCommand() *cli.Command {
	return &cli.Command{
		Name:  "video",
		Usage: "segment one object on a frame and carry it through the following frames",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "frames", Usage: "directory of video frames", Required: true},
			&cli.IntFlag{Name: "frame-idx", Usage: "frame carrying the prompt"},
			&cli.IntFlag{Name: "stride", Value: 1, Usage: "save every n-th frame mask"},
			outFlag("video_masks"),
		}, promptFlags()...),
		Action: func(c *cli.Context) error {
			opts, err := parsePrompt(c)
			if err != nil {
				return err
			}
			stride := max(c.Int("stride"), 1)
			out := c.String(flagOut)
			if err := os.MkdirAll(out, 0o755); err != nil {
				return err
			}

			return withEngine(c, func(engine *sam2.Engine) error {
				v := sam2.NewVideoPredictor(engine, logrus.StandardLogger())
				if err := v.InitState(c.String("frames")); err != nil {
					return err
				}
				start := c.Int("frame-idx")
				if _, err := v.PredictItem(start, opts); err != nil {
					return err
				}
				return v.PropagateInVideo(c.Context, func(fr sam2.FrameResult) error {
					if (fr.FrameIdx-start)%stride != 0 {
						return nil
					}
					p := filepath.Join(out, fmt.Sprintf("frame_%05d_obj_%d.png", fr.FrameIdx, fr.ObjectID))
					return imageutil.Save(p, fr.Result.Gray(), 100)
				})
			})
		},
	}
}

func logMatch(m *annotate.Match, target boxmatch.Box[float32]) {
	logrus.WithFields(logrus.Fields{
		"target":     target,
		"box":        m.BBox,
		"index":      m.Index,
		"distance":   m.Distance,
		"candidates": len(m.Candidates),
	}).Info("matched mask")
}

