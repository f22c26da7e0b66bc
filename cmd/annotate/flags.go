package main

import (
	"fmt"

	"github.com/getcharzp/go-annotation"
	"github.com/getcharzp/go-annotation/boxmatch"
	"github.com/getcharzp/go-annotation/sam2"
	"github.com/urfave/cli/v2"
)

const (
	flagOrtLib  = "ort-lib"
	flagEncoder = "encoder"
	flagDecoder = "decoder"
	flagCuda    = "cuda"
	flagThreads = "threads"
	flagVerbose = "verbose"

	flagImage         = "image"
	flagBox           = "box"
	flagSwapBox       = "swap-box"
	flagOut           = "out"
	flagPointsPerSide = "points-per-side"
	flagMinScore      = "min-score"
	flagPoint         = "point"
	flagLabel         = "label"
	flagSegModel      = "seg-model"
)

func imageFlag() cli.Flag {
	return &cli.StringFlag{Name: flagImage, Aliases: []string{"i"}, Usage: "input image", Required: true}
}

func boxFlag(required bool) cli.Flag {
	return &cli.Float64SliceFlag{Name: flagBox, Usage: "target box as four comma separated values", Required: required}
}

func outFlag(value string) cli.Flag {
	return &cli.StringFlag{Name: flagOut, Aliases: []string{"o"}, Value: value, Usage: "output path"}
}

func generatorFlags() []cli.Flag {
	def := sam2.DefaultGeneratorConfig()
	return []cli.Flag{
		&cli.IntFlag{Name: flagPointsPerSide, Value: def.PointsPerSide, Usage: "grid points per image side"},
		&cli.Float64Flag{Name: flagMinScore, Value: float64(def.ScoreThreshold), Usage: "drop masks scoring below this"},
	}
}

func promptFlags() []cli.Flag {
	return []cli.Flag{
		boxFlag(false),
		&cli.BoolFlag{Name: flagSwapBox, Usage: "box is given as (y0, x0, y1, x1); without it --box is read as (x0, y0, x1, y1)"},
		&cli.Float64SliceFlag{Name: flagPoint, Usage: "prompt point as x,y; repeat for more points"},
		&cli.IntSliceFlag{Name: flagLabel, Usage: "label per point, 1 foreground / 0 background"},
	}
}

// sam2Config 由全局参数构造 sam2.Config
func sam2Config(c *cli.Context) sam2.Config {
	cfg := sam2.DefaultConfig()
	if lib := c.String(flagOrtLib); lib != "" {
		cfg.OnnxRuntimeLibPath = lib
	}
	cfg.EncodeModelPath = c.String(flagEncoder)
	cfg.DecodeModelPath = c.String(flagDecoder)
	cfg.UseCuda = c.Bool(flagCuda)
	cfg.NumThreads = c.Int(flagThreads)
	return cfg
}

func ortLib(c *cli.Context) string {
	if lib := c.String(flagOrtLib); lib != "" {
		return lib
	}
	return annotation.DefaultLibraryPath()
}

func generatorConfig(c *cli.Context) sam2.GeneratorConfig {
	cfg := sam2.DefaultGeneratorConfig()
	cfg.PointsPerSide = c.Int(flagPointsPerSide)
	cfg.ScoreThreshold = float32(c.Float64(flagMinScore))
	return cfg
}

// parseBox 将 4 个数值转换为框
func parseBox(values []float64) (boxmatch.Box[float32], error) {
	if len(values) != 4 {
		return boxmatch.Box[float32]{}, fmt.Errorf("框需要 4 个数值, 实际 %d 个", len(values))
	}
	var b boxmatch.Box[float32]
	for i, v := range values {
		b[i] = float32(v)
	}
	return b, nil
}

// parsePrompt 解析 --box / --point / --label
func parsePrompt(c *cli.Context) (sam2.PredictOptions, error) {
	opts := sam2.PredictOptions{SwapBoxAxes: c.Bool(flagSwapBox)}
	if values := c.Float64Slice(flagBox); len(values) > 0 {
		b, err := parseBox(values)
		if err != nil {
			return opts, err
		}
		opts.Box = &b
	}

	coords := c.Float64Slice(flagPoint)
	if len(coords)%2 != 0 {
		return opts, fmt.Errorf("点坐标数量必须为偶数, 实际 %d 个", len(coords))
	}
	for i := 0; i < len(coords); i += 2 {
		opts.Points = append(opts.Points, [2]float32{float32(coords[i]), float32(coords[i+1])})
	}
	for _, l := range c.IntSlice(flagLabel) {
		opts.Labels = append(opts.Labels, sam2.Label(l))
	}
	return opts, nil
}
