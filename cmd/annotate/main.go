package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := loadEnv(".env"); err != nil {
		logrus.WithError(err).Warn("加载 .env 失败")
	}

	if err := newApp().Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("annotate failed")
	}
}

// loadEnv 加载 env 文件，文件不存在时忽略
func loadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "annotate",
		Usage: "SAM2 mask generation and bounding-box to mask matching",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagOrtLib, Usage: "onnxruntime shared library", EnvVars: []string{"ANNOTATE_ORT_LIB"}},
			&cli.StringFlag{Name: flagEncoder, Value: "./sam2_weights/vision_encoder.onnx", Usage: "SAM2 vision encoder model", EnvVars: []string{"ANNOTATE_SAM2_ENCODER"}},
			&cli.StringFlag{Name: flagDecoder, Value: "./sam2_weights/prompt_encoder_mask_decoder.onnx", Usage: "SAM2 prompt encoder / mask decoder model", EnvVars: []string{"ANNOTATE_SAM2_DECODER"}},
			&cli.BoolFlag{Name: flagCuda, Usage: "enable the CUDA execution provider", EnvVars: []string{"ANNOTATE_CUDA"}},
			&cli.IntFlag{Name: flagThreads, Usage: "intra-op threads, 0 for runtime default", EnvVars: []string{"ANNOTATE_THREADS"}},
			&cli.BoolFlag{Name: flagVerbose, Aliases: []string{"v"}, Usage: "debug logging"},
		},
		Before: func(c *cli.Context) error {
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if c.Bool(flagVerbose) {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			masksCommand(),
			matchCommand(),
			detectMatchCommand(),
			imageCommand(),
			videoCommand(),
		},
	}
}
