// Package main runs the bridge: it connects a depth camera device and a
// rosbridge server and maps the device pipeline onto ROS topics and
// parameter servers.
package main

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	goutils "go.viam.com/utils"

	"github.com/oak-ros/daibridge/bridge"
	"github.com/oak-ros/daibridge/dai"
	"github.com/oak-ros/daibridge/dai/fake"
	"github.com/oak-ros/daibridge/ros"
)

var logger = golog.NewDevelopmentLogger("daibridge")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,required,usage=bridge config file"`
	Debug      bool   `flag:"debug"`
}

// debugLogger rebuilds the process logger with the level dropped to debug.
func debugLogger() (golog.Logger, error) {
	config := golog.NewDevelopmentLoggerConfig()
	config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	zl, err := config.Build()
	if err != nil {
		return nil, err
	}
	return zl.Sugar().Named("daibridge"), nil
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) (err error) {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		debugL, err := debugLogger()
		if err != nil {
			return err
		}
		logger = debugL
	}

	cfg, err := bridge.ReadConfig(argsParsed.ConfigFile)
	if err != nil {
		return err
	}

	device, pipeline, err := openDevice(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, device.Close())
	}()

	conn, err := ros.Dial(ctx, cfg.RosbridgeAddr, logger)
	if err != nil {
		return err
	}
	client := ros.NewClient(conn, logger)
	defer func() {
		err = multierr.Combine(err, client.Close())
	}()

	opts := []bridge.Option{bridge.WithFrameNames(cfg.FrameNameTable())}
	if cfg.FramePrefix != "" {
		opts = append(opts, bridge.WithFramePrefix(cfg.FramePrefix))
	}
	if cfg.QueueSize > 0 {
		opts = append(opts, bridge.WithQueueSize(cfg.QueueSize))
	}
	publisher, err := bridge.NewPipelinePublisher(client, device, pipeline, logger, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, publisher.Close())
	}()

	logger.Infow("bridge running", "device", device.MxID(), "topics", publisher.Topics())
	<-ctx.Done()
	return nil
}

// openDevice connects the configured device and the pipeline to run on it.
// Only the in-memory device ships in-tree; it streams synthetic frames so
// a connected rosbridge server sees traffic.
func openDevice(ctx context.Context, cfg *bridge.Config, logger golog.Logger) (dai.Device, *dai.Pipeline, error) {
	if cfg.DeviceID != "fake" {
		return nil, nil, errors.Errorf("no transport for device %q; only the fake device is supported", cfg.DeviceID)
	}
	device := fake.NewDevice(cfg.DeviceID)
	pipeline, err := demoPipeline()
	if err != nil {
		return nil, nil, err
	}
	goutils.PanicCapturingGo(func() {
		pumpFrames(ctx, device, logger)
	})
	return device, pipeline, nil
}

// demoPipeline wires every recognized node kind to the host: color video,
// a stereo pair with depth, and the IMU.
func demoPipeline() (*dai.Pipeline, error) {
	p := dai.NewPipeline()

	color := p.AddColorCamera(dai.SocketRGB)
	colorOut := p.AddXLinkOut("color")
	if err := p.Link(color.ID(), "video", colorOut.ID(), "in"); err != nil {
		return nil, err
	}

	left := p.AddMonoCamera(dai.SocketLeft)
	right := p.AddMonoCamera(dai.SocketRight)
	stereo := p.AddStereoDepth()
	if err := p.Link(left.ID(), "out", stereo.ID(), "left"); err != nil {
		return nil, err
	}
	if err := p.Link(right.ID(), "out", stereo.ID(), "right"); err != nil {
		return nil, err
	}
	depthOut := p.AddXLinkOut("depth")
	if err := p.Link(stereo.ID(), "depth", depthOut.ID(), "in"); err != nil {
		return nil, err
	}

	imu := p.AddIMU()
	imuOut := p.AddXLinkOut("imu")
	if err := p.Link(imu.ID(), "out", imuOut.ID(), "in"); err != nil {
		return nil, err
	}

	return p, nil
}

// pumpFrames feeds the fake device's streams until the context ends.
func pumpFrames(ctx context.Context, device *fake.Device, logger golog.Logger) {
	var seq int64
	for goutils.SelectContextOrWait(ctx, 100*time.Millisecond) {
		now := time.Now()
		device.Push("color", &dai.ImgFrame{
			Width: 1920, Height: 1080,
			Type:      dai.ImgTypeNV12,
			Data:      make([]byte, 1920*1080*3/2),
			Timestamp: now,
			Sequence:  seq,
			Instance:  dai.SocketRGB,
		})
		device.Push("depth", &dai.ImgFrame{
			Width: 1280, Height: 720,
			Type:      dai.ImgTypeRaw16,
			Data:      make([]byte, 1280*720*2),
			Timestamp: now,
			Sequence:  seq,
			Instance:  dai.SocketRight,
		})
		device.Push("imu", &dai.IMUData{Packets: []dai.IMUPacket{{
			Accelerometer: dai.Vec3{Z: 9.81},
			Rotation:      dai.Quaternion{Real: 1},
			Timestamp:     now,
			Sequence:      seq,
		}}})
		seq++
	}
	logger.Debug("frame pump stopped")
}
