// Command yolov4 runs YOLOv4 detection over an image or a video stream and
// displays the boxed results.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolov4/classes"
	"github.com/nvr-ai/go-yolov4/inference"
	"github.com/nvr-ai/go-yolov4/models/postprocess"
	"github.com/nvr-ai/go-yolov4/models/yolov4"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to ./config.yaml if present)")
	imagePath := flag.String("image", "", "run detection on a single image")
	videoSource := flag.String("video", "", "run detection on a video file or capture device id")
	flag.Parse()

	if err := loadConfig(*configPath); err != nil {
		log.Fatalf("config: %v", err)
	}

	names := classes.COCO()
	if path := viper.GetString("classes"); path != "" {
		loaded, err := classes.Load(path)
		if err != nil {
			log.Fatal(err)
		}
		names = loaded
	}

	det := yolov4.DefaultConfig(len(names))
	det.ScoreThreshold = float32(viper.GetFloat64("detector.score_threshold"))
	det.NMS.IoUThreshold = float32(viper.GetFloat64("detector.nms.iou_threshold"))
	det.NMS.Sigma = float32(viper.GetFloat64("detector.nms.sigma"))
	det.NMS.Method = postprocess.Method(viper.GetString("detector.nms.method"))

	detector, err := yolov4.NewDetector(det)
	if err != nil {
		log.Fatal(err)
	}

	onnxCfg := inference.DefaultONNXConfig(viper.GetString("model.path"))
	if lib := viper.GetString("model.library"); lib != "" {
		onnxCfg.LibraryPath = lib
	}
	net, err := inference.NewONNXNetwork(onnxCfg, det)
	if err != nil {
		log.Fatal(err)
	}
	defer net.Close()

	switch {
	case *imagePath != "":
		err = runImage(*imagePath, net, detector, names)
	case *videoSource != "":
		err = runVideo(*videoSource, net, detector, names)
	default:
		err = fmt.Errorf("nothing to do: pass -image or -video")
	}
	if err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the YAML config, falling back to built-in defaults when
// no file is present. An explicitly passed path must exist.
func loadConfig(path string) error {
	viper.SetDefault("detector.score_threshold", 0.25)
	viper.SetDefault("detector.nms.iou_threshold", 0.213)
	viper.SetDefault("detector.nms.sigma", 0.3)
	viper.SetDefault("detector.nms.method", string(postprocess.MethodHard))
	viper.SetDefault("model.path", "yolov4.onnx")

	if path != "" {
		viper.SetConfigFile(path)
		return viper.ReadInConfig()
	}
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

// detectFrame runs the full pipeline on one BGR frame.
func detectFrame(frame gocv.Mat, net inference.Network, detector *yolov4.Detector) ([]postprocess.Result, error) {
	img, err := frame.ToImage()
	if err != nil {
		return nil, err
	}
	input, _ := inference.PrepareInput(img, detector.Config().InputSize)
	raw, err := net.Predict(input)
	if err != nil {
		return nil, err
	}
	return detector.Detect(raw, frame.Cols(), frame.Rows())
}

func runImage(path string, net inference.Network, detector *yolov4.Detector, names []string) error {
	frame := gocv.IMRead(path, gocv.IMReadColor)
	if frame.Empty() {
		return fmt.Errorf("cannot read image %s", path)
	}
	defer frame.Close()

	results, err := detectFrame(frame, net, detector)
	if err != nil {
		return err
	}
	drawDetections(&frame, results, names)

	window := gocv.NewWindow("result")
	defer window.Close()
	window.IMShow(frame)
	window.WaitKey(0)
	return nil
}

func runVideo(source string, net inference.Network, detector *yolov4.Detector, names []string) error {
	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return fmt.Errorf("cannot open video source %s: %w", source, err)
	}
	defer capture.Close()

	window := gocv.NewWindow("result")
	defer window.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		if ok := capture.Read(&frame); !ok {
			return fmt.Errorf("no more frames from %s", source)
		}
		if frame.Empty() {
			continue
		}

		start := time.Now()
		results, err := detectFrame(frame, net, detector)
		if err != nil {
			return err
		}
		fmt.Printf("objects=%d time=%.2fms\n", len(results), float64(time.Since(start).Microseconds())/1000)

		drawDetections(&frame, results, names)
		window.IMShow(frame)
		if window.WaitKey(10) == 'q' {
			return nil
		}
	}
}
