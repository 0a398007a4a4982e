package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stratux/imufusion/fusion"
	"github.com/stratux/imufusion/regio"
	"github.com/stratux/imufusion/sensors"
)

const DefaultAppName = "imufusion"
const DefaultConfigName = "config"
const DefaultBackend = "embd"
const DefaultBusNumber = 1
const DefaultBusName = ""
const DefaultPollIntervalMS = 20
const DefaultTelemetryListen = ""

// Device models understood by the poll command.
const (
	ModelMPU6050 = "mpu6050"
	ModelWT901   = "wt901"
)

// Bus backends.
const (
	BackendEmbd   = "embd"
	BackendPeriph = "periph"
	BackendSim    = "sim"
)

var userHomeDir, _ = os.UserHomeDir()
var DefaultConfig = path.Join(userHomeDir, ".config/"+DefaultAppName+"/"+DefaultConfigName+".yaml")
var DefaultConfigSearchPath0 = path.Join(userHomeDir, ".config", DefaultAppName)

const DefaultConfigSearchPath1 = "/etc/" + DefaultAppName
const DefaultConfigSearchPath2 = "./"

type BusOpt struct {
	Backend    string `yaml:"backend" mapstructure:"backend"`         // embd, periph or sim
	Number     int    `yaml:"number" mapstructure:"number"`           // embd bus number
	Name       string `yaml:"name" mapstructure:"name"`               // periph bus name, "" for the first one
	MuxAddress int    `yaml:"mux_address" mapstructure:"mux_address"` // TCA9548A address, 0 if there is no mux
}

type DeviceOpt struct {
	Model      string    `yaml:"model" mapstructure:"model"`
	Address    int       `yaml:"address" mapstructure:"address"`                   // 0 for the model's default
	MuxChannel *int      `yaml:"mux_channel,omitempty" mapstructure:"mux_channel"` // unset when not behind the mux
	AccelRange int       `yaml:"accel_range" mapstructure:"accel_range"`
	GyroRange  int       `yaml:"gyro_range" mapstructure:"gyro_range"`
	Mounting   []float64 `yaml:"mounting,omitempty" mapstructure:"mounting"` // row-major 3x3

	// MPU6050 only; unset leaves the chip's power-up value.
	DLPF          *int `yaml:"dlpf,omitempty" mapstructure:"dlpf"`                       // DLPF_CFG 0-6
	SampleRateDiv *int `yaml:"sample_rate_div,omitempty" mapstructure:"sample_rate_div"` // SMPLRT_DIV 0-255

	// WT901 only.
	Quaternion bool `yaml:"quaternion,omitempty" mapstructure:"quaternion"`   // also read the onboard quaternion every poll
	OutputRate int  `yaml:"output_rate,omitempty" mapstructure:"output_rate"` // RRATE code, 0 leaves it alone
}

type FusionOpt struct {
	Weight      float64 `yaml:"weight" mapstructure:"weight"`
	YawOffset   float64 `yaml:"yaw_offset" mapstructure:"yaw_offset"`
	Calibration string  `yaml:"calibration" mapstructure:"calibration"`
}

type TelemetryOpt struct {
	Listen string `yaml:"listen" mapstructure:"listen"` // "" disables the websocket
}

type ImuFusionOpt struct {
	Bus            BusOpt       `yaml:"bus" mapstructure:"bus"`
	Devices        []DeviceOpt  `yaml:"devices" mapstructure:"devices"`
	Fusion         FusionOpt    `yaml:"fusion" mapstructure:"fusion"`
	Telemetry      TelemetryOpt `yaml:"telemetry" mapstructure:"telemetry"`
	PollIntervalMS int          `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	Verbosity      int          `yaml:"verbosity" mapstructure:"verbosity"`
}

type ImuFusionDesc struct {
	Opt   ImuFusionOpt
	Viper *viper.Viper
}

func NewImuFusionDesc() ImuFusionDesc {
	return ImuFusionDesc{
		Opt:   NewImuFusionOpt(),
		Viper: nil,
	}
}

func NewImuFusionOpt() ImuFusionOpt {
	return ImuFusionOpt{
		Bus: BusOpt{
			Backend: DefaultBackend,
			Number:  DefaultBusNumber,
			Name:    DefaultBusName,
		},
		Devices: []DeviceOpt{
			{
				Model: ModelMPU6050,
			},
		},
		Fusion: FusionOpt{
			Weight:      fusion.DefaultWeight,
			YawOffset:   fusion.DefaultYawOffset,
			Calibration: "",
		},
		Telemetry: TelemetryOpt{
			Listen: DefaultTelemetryListen,
		},
		PollIntervalMS: DefaultPollIntervalMS,
	}
}

func (o *ImuFusionDesc) Parse(cmd *cobra.Command) error {
	vipCfg := viper.New()
	vipCfg.SetDefault("bus.backend", DefaultBackend)
	vipCfg.SetDefault("bus.number", DefaultBusNumber)
	vipCfg.SetDefault("bus.name", DefaultBusName)
	vipCfg.SetDefault("bus.mux_address", 0)
	vipCfg.SetDefault("devices", []map[string]interface{}{{"model": ModelMPU6050}})
	vipCfg.SetDefault("fusion.weight", fusion.DefaultWeight)
	vipCfg.SetDefault("fusion.yaw_offset", fusion.DefaultYawOffset)
	vipCfg.SetDefault("fusion.calibration", "")
	vipCfg.SetDefault("telemetry.listen", DefaultTelemetryListen)
	vipCfg.SetDefault("poll_interval_ms", DefaultPollIntervalMS)
	vipCfg.SetDefault("verbosity", 0)

	if configFileCmd, err := cmd.Flags().GetString("config"); err == nil && configFileCmd != "" {
		vipCfg.SetConfigFile(configFileCmd)
	} else {
		configFileEnv := os.Getenv("IMUFUSION_CONFIG")
		if configFileEnv != "" {
			vipCfg.SetConfigFile(configFileEnv)
		} else {
			vipCfg.SetConfigName(DefaultConfigName)
			vipCfg.SetConfigType("yaml")
			vipCfg.AddConfigPath(DefaultConfigSearchPath0)
			vipCfg.AddConfigPath(DefaultConfigSearchPath1)
			vipCfg.AddConfigPath(DefaultConfigSearchPath2)
		}
	}

	vipCfg.SetEnvPrefix(DefaultAppName)
	vipCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vipCfg.AutomaticEnv()

	_ = vipCfg.BindPFlag("bus.backend", cmd.Flags().Lookup("backend"))
	_ = vipCfg.BindPFlag("telemetry.listen", cmd.Flags().Lookup("listen"))
	_ = vipCfg.BindPFlag("poll_interval_ms", cmd.Flags().Lookup("interval"))

	// If a config file is found, read it in.
	if err := vipCfg.ReadInConfig(); err == nil {
		glog.V(1).Infof("config: using config file %s", vipCfg.ConfigFileUsed())
	} else {
		glog.Warningf("config: %v", err)
	}

	var opt ImuFusionOpt
	if err := vipCfg.Unmarshal(&opt); err != nil {
		return fmt.Errorf("config: failed to unmarshal config: %w", err)
	}
	o.Opt = opt

	o.Viper = vipCfg
	return o.Opt.Validate()
}

// PostParse raises glog's verbosity to the configured level.
func (o *ImuFusionDesc) PostParse() {
	if o.Opt.Verbosity > 0 {
		_ = flag.Set("v", strconv.Itoa(o.Opt.Verbosity))
	}
}

func (o *ImuFusionDesc) SaveConfig() error {
	if o.Viper == nil {
		return errors.New("viper is nil")
	}
	return dumpOption(o.Opt, o.Viper.ConfigFileUsed())
}

// Validate checks what the poll command would otherwise only find out when opening devices.
func (o ImuFusionOpt) Validate() error {
	switch o.Bus.Backend {
	case BackendEmbd, BackendPeriph, BackendSim:
	default:
		return fmt.Errorf("config: unknown bus backend %q", o.Bus.Backend)
	}
	if o.Bus.MuxAddress < 0 || o.Bus.MuxAddress > 0x7F {
		return fmt.Errorf("config: mux address 0x%X out of range", o.Bus.MuxAddress)
	}
	for i, d := range o.Devices {
		switch d.Model {
		case ModelMPU6050, ModelWT901:
		default:
			return fmt.Errorf("config: device %d: unknown model %q", i, d.Model)
		}
		if d.Address < 0 || d.Address > 0x7F {
			return fmt.Errorf("config: device %d: address 0x%X out of range", i, d.Address)
		}
		if d.MuxChannel != nil {
			if *d.MuxChannel < 0 || *d.MuxChannel > 7 {
				return fmt.Errorf("config: device %d: mux channel %d out of range", i, *d.MuxChannel)
			}
			if o.Bus.MuxAddress == 0 {
				return fmt.Errorf("config: device %d: mux channel set but bus has no mux_address", i)
			}
		}
		if d.AccelRange < 0 || d.AccelRange > 3 || d.GyroRange < 0 || d.GyroRange > 3 {
			return fmt.Errorf("config: device %d: range codes must be 0-3", i)
		}
		if len(d.Mounting) != 0 && len(d.Mounting) != 9 {
			return fmt.Errorf("config: device %d: mounting needs 9 elements, got %d", i, len(d.Mounting))
		}
		if d.DLPF != nil && (*d.DLPF < 0 || *d.DLPF > 6) {
			return fmt.Errorf("config: device %d: dlpf must be 0-6, got %d", i, *d.DLPF)
		}
		if d.SampleRateDiv != nil && (*d.SampleRateDiv < 0 || *d.SampleRateDiv > 0xFF) {
			return fmt.Errorf("config: device %d: sample_rate_div must be 0-255, got %d", i, *d.SampleRateDiv)
		}
		if d.Model != ModelMPU6050 && (d.DLPF != nil || d.SampleRateDiv != nil) {
			return fmt.Errorf("config: device %d: dlpf and sample_rate_div only apply to %s", i, ModelMPU6050)
		}
		if d.Model != ModelWT901 && (d.Quaternion || d.OutputRate != 0) {
			return fmt.Errorf("config: device %d: quaternion and output_rate only apply to %s", i, ModelWT901)
		}
		if d.OutputRate < 0 || d.OutputRate > 0x0B || d.OutputRate == 0x0A {
			return fmt.Errorf("config: device %d: output_rate 0x%02X is not a valid rate code", i, d.OutputRate)
		}
	}
	if o.Fusion.Weight < 0 || o.Fusion.Weight > 1 {
		return fmt.Errorf("config: fusion weight must be within 0-1, got %v", o.Fusion.Weight)
	}
	if o.PollIntervalMS <= 0 {
		return fmt.Errorf("config: poll_interval_ms must be positive, got %d", o.PollIntervalMS)
	}
	return nil
}

// PollInterval returns the configured time between polls.
func (o ImuFusionOpt) PollInterval() time.Duration {
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

// Mount returns the device's mounting rotation, or nil for none.
func (d DeviceOpt) Mount() (*sensors.Mounting, error) {
	if len(d.Mounting) == 0 {
		return nil, nil
	}
	return sensors.NewMounting(d.Mounting)
}

// LoadCalibration returns the filter constants: the calibration file if one is
// configured, otherwise the configured yaw offset and zero drift. When the file
// can't be loaded the error is returned along with that same fallback.
func (f FusionOpt) LoadCalibration() (fusion.Calibration, error) {
	if f.Calibration == "" {
		return f.fallbackCalibration(), nil
	}
	c, err := fusion.LoadCalibration(f.Calibration)
	if err != nil {
		return f.fallbackCalibration(), err
	}
	return c, nil
}

func (f FusionOpt) fallbackCalibration() fusion.Calibration {
	c := fusion.DefaultCalibration()
	c.YawOffset = f.YawOffset
	return c
}

// OpenBus opens the configured bus backend. The returned closer releases it.
func (b BusOpt) OpenBus() (regio.Transport, func() error, error) {
	switch b.Backend {
	case BackendEmbd:
		bus, err := regio.OpenEmbdBus(byte(b.Number))
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	case BackendPeriph:
		bus, err := regio.OpenPeriphBus(b.Name)
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	case BackendSim:
		return regio.NewMemory(), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("config: unknown bus backend %q", b.Backend)
}

// InitCfg prepares a config template for the application.
func InitCfg(cmd *cobra.Command, _ []string) error {
	printFlag, _ := cmd.Flags().GetBool("print")
	outputPath, _ := cmd.Flags().GetString("output")
	overwriteFlag, _ := cmd.Flags().GetBool("yes")

	desc := NewImuFusionDesc()
	err := desc.Parse(cmd)
	if err != nil {
		glog.Errorln(err)
		return err
	}

	if printFlag {
		configBuffer, _ := yaml.Marshal(desc.Opt)
		fmt.Println(string(configBuffer))
		return nil
	}
	if !overwriteFlag {
		if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
			return fmt.Errorf("config: %s already exists, pass --yes to overwrite", outputPath)
		}
	}
	return dumpOption(desc.Opt, outputPath)
}

func dumpOption(opt interface{}, outputPath string) error {
	buffer, err := yaml.Marshal(opt)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path.Dir(outputPath), 0700); err != nil {
		return fmt.Errorf("config: cannot create directory %s: %w", path.Dir(outputPath), err)
	}

	glog.Infof("config: writing configuration to %s", outputPath)
	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	if _, err := w.Write(buffer); err != nil {
		return err
	}
	return w.Flush()
}
