package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/stratux/imufusion/config"
	"github.com/stratux/imufusion/mpu6050"
	"github.com/stratux/imufusion/poller"
	"github.com/stratux/imufusion/regio"
	"github.com/stratux/imufusion/sensors"
	"github.com/stratux/imufusion/telemetry"
	"github.com/stratux/imufusion/wt901"
)

var RootCmd = &cobra.Command{
	Use:   "imupoll",
	Short: "poll I2C IMUs and fuse their orientation",
	Long:  "poll I2C IMUs (MPU6050, WT901), fuse their orientation and stream it over a websocket",
}

func commonFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "configuration file path")
	cmd.Flags().String("backend", config.DefaultBackend, "bus backend: embd, periph or sim")
}

// setup parses the configuration and opens the bus and every configured device.
func setup(cmd *cobra.Command) (config.ImuFusionDesc, []poller.Device, func() error, error) {
	desc := config.NewImuFusionDesc()
	if err := desc.Parse(cmd); err != nil {
		return desc, nil, nil, err
	}
	desc.PostParse()

	bus, closer, err := desc.Opt.Bus.OpenBus()
	if err != nil {
		return desc, nil, nil, err
	}
	if m, ok := bus.(*regio.Memory); ok {
		poller.SeedSim(m, desc.Opt)
	}
	devs, err := poller.Open(desc.Opt, bus)
	if err != nil {
		_ = closer()
		return desc, nil, nil, err
	}
	return desc, devs, closer, nil
}

func PollCmdRunE(cmd *cobra.Command, _ []string) error {
	desc, devs, closer, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = closer() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pub poller.Publisher = poller.LogBundle
	if listen := desc.Opt.Telemetry.Listen; listen != "" {
		room := telemetry.NewRoom()
		go room.Run()
		defer room.Close()

		mux := http.NewServeMux()
		mux.Handle("/imu", room)
		srv := &http.Server{Addr: listen, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				glog.Errorf("imupoll: telemetry server: %v", err)
			}
		}()
		defer srv.Close()
		glog.Infof("imupoll: streaming on ws://%s/imu", listen)

		pub = poller.PublisherFunc(func(b *sensors.Bundle) error {
			if glog.V(1) {
				_ = poller.LogBundle(b)
			}
			return room.Publish(b)
		})
	}

	count, _ := cmd.Flags().GetInt("count")
	return poller.Poll(ctx, devs, desc.Opt.PollInterval(), count, pub)
}

func PollCmdFlags(cmd *cobra.Command) {
	commonFlags(cmd)
	cmd.Flags().StringP("listen", "l", config.DefaultTelemetryListen, "websocket listen address, e.g. :8000")
	cmd.Flags().Int("interval", config.DefaultPollIntervalMS, "poll interval in milliseconds")
	cmd.Flags().IntP("count", "n", 0, "stop after this many rounds, 0 to run until interrupted")
}

var PollCmd = &cobra.Command{
	Use: "poll",
	SuggestFor: []string{
		"pol", "run",
	},
	Short: "poll the configured IMUs",
	Long: `poll reads every configured IMU once per interval using the configuration found in the following order:
1. path specified in --config flag
2. path defined by the IMUFUSION_CONFIG environment variable
3. default location $HOME/.config/imufusion/config.yaml, /etc/imufusion/config.yaml, current directory
Command line flags override environment variables (IMUFUSION_ prefix), which override the file.
`,
	Example: `  imupoll poll --config=/path/to/config.yaml
  imupoll poll --backend sim -n 10 -v 2 --logtostderr`,
	RunE: PollCmdRunE,
}

func DumpCmdRunE(cmd *cobra.Command, _ []string) error {
	_, devs, closer, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = closer() }()

	for i, d := range devs {
		switch dev := poller.Driver(d).(type) {
		case *mpu6050.MPU6050:
			regs, err := dev.DumpRegisters()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(regs))
			for name := range regs {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Printf("=== Device %d: %s ===\n", i, mpu6050.Name)
			for _, name := range names {
				fmt.Printf("  %-14s = 0x%02X\n", name, regs[name])
			}
		case *wt901.WT901:
			fmt.Printf("=== Device %d: %s ===\n", i, wt901.Name)
			if temp, err := dev.Temperature(); err == nil {
				fmt.Printf("  temperature    = %.2f °C\n", temp)
			} else {
				fmt.Printf("  temperature    : %v\n", err)
			}
			if a, err := dev.Angles(wt901.Degrees); err == nil {
				fmt.Printf("  angles         = roll %.2f pitch %.2f yaw %.2f\n", a.X, a.Y, a.Z)
			} else {
				fmt.Printf("  angles         : %v\n", err)
			}
			if q, err := dev.Quaternion(); err == nil {
				fmt.Printf("  quaternion     = %.4f %.4f %.4f %.4f\n", q.W, q.X, q.Y, q.Z)
				e := sensors.EulerFromQuaternion(q)
				fmt.Printf("  euler (quat)   = roll %.2f pitch %.2f yaw %.2f\n", e.X, e.Y, e.Z)
			} else {
				fmt.Printf("  quaternion     : %v\n", err)
			}
		}
	}
	return nil
}

var DumpCmd = &cobra.Command{
	Use:     "dump",
	Short:   "print the configuration registers of every configured IMU",
	Example: `  imupoll dump --config=/path/to/config.yaml`,
	RunE:    DumpCmdRunE,
}

func CalibrateCmdRunE(cmd *cobra.Command, _ []string) error {
	desc, devs, closer, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = closer() }()

	index, _ := cmd.Flags().GetInt("device")
	samples, _ := cmd.Flags().GetInt("samples")
	if index < 0 || index >= len(devs) {
		return fmt.Errorf("imupoll: no device %d", index)
	}
	if _, ok := devs[index].(*mpu6050.MPU6050); !ok {
		return fmt.Errorf("imupoll: device %d has no host-side filter to calibrate", index)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	glog.Infof("imupoll: keep device %d still for %d samples", index, samples)
	cal, err := poller.EstimateDrift(ctx, devs[index], samples, desc.Opt.PollInterval(), desc.Opt.Fusion.YawOffset)
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = desc.Opt.Fusion.Calibration
	}
	return cal.Save(out)
}

var CalibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "estimate gyro drift of a stationary MPU6050 and save it",
	Long: `calibrate averages the gyro output of a stationary MPU6050 and saves the
per-update drift for the configured poll interval. The file is written to --output,
or the fusion.calibration path of the configuration, or /etc/imufusion_cal.json.
`,
	Example: `  imupoll calibrate --samples 500 -o ./cal.json`,
	RunE:    CalibrateCmdRunE,
}

func CalibrateCmdFlags(cmd *cobra.Command) {
	commonFlags(cmd)
	cmd.Flags().Int("device", 0, "index of the device in the configuration")
	cmd.Flags().Int("samples", 250, "number of samples to average")
	cmd.Flags().StringP("output", "o", "", "calibration file to write")
}

func InitCmdFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "configuration file to start from")
	cmd.Flags().Bool("print", false, "print config to stdout")
	cmd.Flags().BoolP("yes", "y", false, "overwrite")
	cmd.Flags().StringP("output", "o", config.DefaultConfig, "specify output path")
}

var InitCmd = &cobra.Command{
	Use: "init",
	SuggestFor: []string{
		"ini", "in",
	},
	Short: "init create a configuration template",
	Long: `init create a configuration template.
If --print flag is present, the configuration will be printed to stdout.
If --output / -o flag is present, the configuration will be saved to the path specified
Otherwise init will output configuration file to $HOME/.config/imufusion/config.yaml
If --yes / -y flag is present, an existing file will be overwritten
`,
	Example: `  imupoll init --print
  imupoll init -o /path/to/config.yaml -y`,
	RunE: config.InitCfg,
}

func getRootCmd() *cobra.Command {
	RootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	PollCmdFlags(PollCmd)
	RootCmd.AddCommand(PollCmd)

	commonFlags(DumpCmd)
	RootCmd.AddCommand(DumpCmd)

	CalibrateCmdFlags(CalibrateCmd)
	RootCmd.AddCommand(CalibrateCmd)

	InitCmdFlags(InitCmd)
	RootCmd.AddCommand(InitCmd)

	return RootCmd
}
