package bridge

import (
	"context"
	"encoding/json"

	"github.com/edaniels/golog"
	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/multierr"

	"github.com/oak-ros/daibridge/dai"
	"github.com/oak-ros/daibridge/ros"
)

// stereoParams is the parameter-server shape of a stereo depth
// configuration. Every update pushes the whole record to the device.
type stereoParams struct {
	LeftRightCheck    bool `mapstructure:"left_right_check"`
	Confidence        int  `mapstructure:"confidence"`
	BilateralSigma    int  `mapstructure:"bilateral_sigma"`
	ExtendedDisparity bool `mapstructure:"extended_disparity"`
	Subpixel          bool `mapstructure:"subpixel"`
	LRCheckThreshold  int  `mapstructure:"lr_check_threshold"`
	ThresholdMin      int  `mapstructure:"threshold_min"`
	ThresholdMax      int  `mapstructure:"threshold_max"`
}

func (p *stereoParams) toConfig() dai.StereoDepthConfig {
	return dai.StereoDepthConfig{
		LeftRightCheck:    p.LeftRightCheck,
		Confidence:        p.Confidence,
		BilateralSigma:    p.BilateralSigma,
		ExtendedDisparity: p.ExtendedDisparity,
		Subpixel:          p.Subpixel,
		LRCheckThreshold:  p.LRCheckThreshold,
		ThresholdMin:      p.ThresholdMin,
		ThresholdMax:      p.ThresholdMax,
	}
}

func stereoDefaults(cfg dai.StereoDepthConfig) map[string]any {
	return map[string]any{
		"left_right_check":   cfg.LeftRightCheck,
		"confidence":         cfg.Confidence,
		"bilateral_sigma":    cfg.BilateralSigma,
		"extended_disparity": cfg.ExtendedDisparity,
		"subpixel":           cfg.Subpixel,
		"lr_check_threshold": cfg.LRCheckThreshold,
		"threshold_min":      cfg.ThresholdMin,
		"threshold_max":      cfg.ThresholdMax,
	}
}

// newStereoConfigServer exposes a stereo node's configuration under the
// "stereo" namespace. Accepted updates are pushed whole to the node's
// configuration stream.
func newStereoConfigServer(
	ctx context.Context,
	client *ros.Client,
	device dai.Device,
	node *dai.StereoDepthNode,
	logger golog.Logger,
) (*ros.ParamServer, error) {
	queue, err := device.InputQueue(stereoConfigStream)
	if err != nil {
		return nil, err
	}
	return ros.NewParamServer(client, "stereo", stereoDefaults(node.InitialConfig),
		func(_ []string, snapshot map[string]any) {
			var params stereoParams
			if err := mapstructure.Decode(snapshot, &params); err != nil {
				logger.Warnw("cannot decode stereo parameters", "error", err)
				return
			}
			cfg := params.toConfig()
			if err := queue.Send(ctx, &cfg); err != nil {
				logger.Warnw("cannot push stereo configuration", "error", err)
			}
		}, logger)
}

// cameraParams is the parameter-server shape of a camera's control state.
type cameraParams struct {
	StartStream bool `mapstructure:"start_stream"`

	AutofocusMode    string `mapstructure:"autofocus_mode"`
	AutofocusRegionX int    `mapstructure:"autofocus_region_x"`
	AutofocusRegionY int    `mapstructure:"autofocus_region_y"`
	AutofocusRegionW int    `mapstructure:"autofocus_region_w"`
	AutofocusRegionH int    `mapstructure:"autofocus_region_h"`
	AutofocusLensMin int    `mapstructure:"autofocus_lens_min"`
	AutofocusLensMax int    `mapstructure:"autofocus_lens_max"`
	ManualFocus      int    `mapstructure:"manual_focus"`

	AutoexposureLock         bool `mapstructure:"autoexposure_lock"`
	AutoexposureRegionX      int  `mapstructure:"autoexposure_region_x"`
	AutoexposureRegionY      int  `mapstructure:"autoexposure_region_y"`
	AutoexposureRegionW      int  `mapstructure:"autoexposure_region_w"`
	AutoexposureRegionH      int  `mapstructure:"autoexposure_region_h"`
	AutoexposureCompensation int  `mapstructure:"autoexposure_compensation"`

	Contrast      int `mapstructure:"contrast"`
	Brightness    int `mapstructure:"brightness"`
	Saturation    int `mapstructure:"saturation"`
	Sharpness     int `mapstructure:"sharpness"`
	ChromaDenoise int `mapstructure:"chroma_denoise"`
}

func cameraDefaults() map[string]any {
	return map[string]any{
		"start_stream": false,

		"autofocus_mode":     "CONTINUOUS_VIDEO",
		"autofocus_region_x": 0,
		"autofocus_region_y": 0,
		"autofocus_region_w": 0,
		"autofocus_region_h": 0,
		"autofocus_lens_min": 0,
		"autofocus_lens_max": 255,
		"manual_focus":       0,

		"autoexposure_lock":         false,
		"autoexposure_region_x":     0,
		"autoexposure_region_y":     0,
		"autoexposure_region_w":     0,
		"autoexposure_region_h":     0,
		"autoexposure_compensation": 0,

		"contrast":       0,
		"brightness":     0,
		"saturation":     0,
		"sharpness":      1,
		"chroma_denoise": 1,
	}
}

// cameraParamGroups maps each parameter name to the control group a change
// to it must push.
var cameraParamGroups = map[string]dai.CameraCommand{
	"start_stream": dai.CmdStartStream,

	"autofocus_mode":     dai.CmdAutoFocusMode,
	"autofocus_region_x": dai.CmdAutoFocusRegion,
	"autofocus_region_y": dai.CmdAutoFocusRegion,
	"autofocus_region_w": dai.CmdAutoFocusRegion,
	"autofocus_region_h": dai.CmdAutoFocusRegion,
	"autofocus_lens_min": dai.CmdAutoFocusRegion,
	"autofocus_lens_max": dai.CmdAutoFocusRegion,
	"manual_focus":       dai.CmdManualFocus,

	"autoexposure_lock":         dai.CmdAutoExposureLock,
	"autoexposure_region_x":     dai.CmdAutoExposureRegion,
	"autoexposure_region_y":     dai.CmdAutoExposureRegion,
	"autoexposure_region_w":     dai.CmdAutoExposureRegion,
	"autoexposure_region_h":     dai.CmdAutoExposureRegion,
	"autoexposure_compensation": dai.CmdAutoExposureCompensation,

	"contrast":       dai.CmdContrast,
	"brightness":     dai.CmdBrightness,
	"saturation":     dai.CmdSaturation,
	"sharpness":      dai.CmdSharpness,
	"chroma_denoise": dai.CmdChromaDenoise,
}

func groupsForNames(names []string) map[dai.CameraCommand]bool {
	groups := make(map[dai.CameraCommand]bool, len(names))
	for _, name := range names {
		if cmd, ok := cameraParamGroups[name]; ok {
			groups[cmd] = true
		}
	}
	return groups
}

// applyOrder fixes the order group setters run in when one update touches
// several groups.
var applyOrder = []dai.CameraCommand{
	dai.CmdStartStream,
	dai.CmdAutoFocusMode,
	dai.CmdAutoFocusRegion,
	dai.CmdManualFocus,
	dai.CmdAutoExposureLock,
	dai.CmdAutoExposureRegion,
	dai.CmdAutoExposureCompensation,
	dai.CmdContrast,
	dai.CmdBrightness,
	dai.CmdSaturation,
	dai.CmdSharpness,
	dai.CmdChromaDenoise,
}

// controlForGroups builds the control push for one update: one setter call
// per changed group, with values from the full snapshot.
func controlForGroups(params *cameraParams, groups map[dai.CameraCommand]bool) *dai.CameraControl {
	ctrl := dai.NewCameraControl()
	for _, cmd := range applyOrder {
		if !groups[cmd] {
			continue
		}
		switch cmd {
		case dai.CmdStartStream:
			if params.StartStream {
				ctrl.SetStartStreaming()
			} else {
				ctrl.SetStopStreaming()
			}
		case dai.CmdAutoFocusMode:
			ctrl.SetAutoFocusMode(params.AutofocusMode)
		case dai.CmdAutoFocusRegion:
			ctrl.SetAutoFocusRegion(dai.Region{
				X:      params.AutofocusRegionX,
				Y:      params.AutofocusRegionY,
				Width:  params.AutofocusRegionW,
				Height: params.AutofocusRegionH,
			}, params.AutofocusLensMin, params.AutofocusLensMax)
		case dai.CmdManualFocus:
			ctrl.SetManualFocus(params.ManualFocus)
		case dai.CmdAutoExposureLock:
			ctrl.SetAutoExposureLock(params.AutoexposureLock)
		case dai.CmdAutoExposureRegion:
			ctrl.SetAutoExposureRegion(dai.Region{
				X:      params.AutoexposureRegionX,
				Y:      params.AutoexposureRegionY,
				Width:  params.AutoexposureRegionW,
				Height: params.AutoexposureRegionH,
			})
		case dai.CmdAutoExposureCompensation:
			ctrl.SetAutoExposureCompensation(params.AutoexposureCompensation)
		case dai.CmdContrast:
			ctrl.SetContrast(params.Contrast)
		case dai.CmdBrightness:
			ctrl.SetBrightness(params.Brightness)
		case dai.CmdSaturation:
			ctrl.SetSaturation(params.Saturation)
		case dai.CmdSharpness:
			ctrl.SetSharpness(params.Sharpness)
		case dai.CmdChromaDenoise:
			ctrl.SetChromaDenoise(params.ChromaDenoise)
		}
	}
	return ctrl
}

// A cameraConfigServer is the runtime control surface of one camera: a
// parameter server plus two bounding-box subscriptions that feed the
// auto-exposure and auto-focus metering regions.
type cameraConfigServer struct {
	server *ros.ParamServer
	aeSub  *ros.Subscriber
	afSub  *ros.Subscriber
}

// newCameraConfigServer exposes a camera's control state under the given
// namespace and pushes each change to the camera's control stream.
func newCameraConfigServer(
	ctx context.Context,
	client *ros.Client,
	device dai.Device,
	socket dai.CameraBoardSocket,
	namespace, bboxPrefix string,
	logger golog.Logger,
) (*cameraConfigServer, error) {
	queue, err := device.InputQueue(cameraControlStream(socket))
	if err != nil {
		return nil, err
	}
	server, err := ros.NewParamServer(client, namespace, cameraDefaults(),
		func(changed []string, snapshot map[string]any) {
			var params cameraParams
			if err := mapstructure.Decode(snapshot, &params); err != nil {
				logger.Warnw("cannot decode camera parameters", "camera", socket, "error", err)
				return
			}
			ctrl := controlForGroups(&params, groupsForNames(changed))
			if err := queue.Send(ctx, ctrl); err != nil {
				logger.Warnw("cannot push camera control", "camera", socket, "error", err)
			}
		}, logger)
	if err != nil {
		return nil, err
	}

	s := &cameraConfigServer{server: server}
	s.aeSub, err = client.Subscribe(bboxPrefix+"/ae_bbox", ros.RegionOfInterestType,
		bboxHandler(server, "autoexposure_region", logger))
	if err != nil {
		return nil, multierr.Combine(err, server.Close())
	}
	s.afSub, err = client.Subscribe(bboxPrefix+"/af_bbox", ros.RegionOfInterestType,
		bboxHandler(server, "autofocus_region", logger))
	if err != nil {
		return nil, multierr.Combine(err, s.aeSub.Close(), server.Close())
	}
	return s, nil
}

// bboxHandler folds a region-of-interest message into the four region
// fields of one parameter group; everything else flows through the normal
// update path.
func bboxHandler(server *ros.ParamServer, group string, logger golog.Logger) ros.SubscriberFunc {
	return func(msg json.RawMessage) {
		var roi ros.RegionOfInterest
		if err := json.Unmarshal(msg, &roi); err != nil {
			logger.Warnw("cannot parse bounding box", "namespace", server.Namespace(), "error", err)
			return
		}
		server.Update(map[string]any{
			group + "_x": int(roi.XOffset),
			group + "_y": int(roi.YOffset),
			group + "_w": int(roi.Width),
			group + "_h": int(roi.Height),
		})
	}
}

func (s *cameraConfigServer) Close() error {
	return multierr.Combine(s.afSub.Close(), s.aeSub.Close(), s.server.Close())
}
