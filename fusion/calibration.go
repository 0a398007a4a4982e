package fusion

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/golang/glog"
)

// DefaultCalibrationPath is where Save and Load keep drift constants when no path is given.
const DefaultCalibrationPath = "/etc/imufusion_cal.json"

// Calibration holds the hand tuned constants of one sensor's filter.
type Calibration struct {
	D1, D2, D3 float64 // Drift subtracted from roll and pitch (D3 is unused: yaw has no reference)
	YawOffset  float64 // Per-update yaw offset
}

// DefaultCalibration returns zero drift and the default yaw offset.
func DefaultCalibration() Calibration {
	return Calibration{YawOffset: DefaultYawOffset}
}

// Apply copies the constants into s.
func (c Calibration) Apply(s *State) {
	s.Drift.X, s.Drift.Y, s.Drift.Z = c.D1, c.D2, c.D3
	s.YawOffset = c.YawOffset
}

// Save writes c as JSON to path.
func (c Calibration) Save(path string) error {
	if path == "" {
		path = DefaultCalibrationPath
	}
	calData, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("fusion: error marshaling calibration data: %w", err)
	}
	if err := os.WriteFile(path, calData, os.FileMode(0644)); err != nil {
		return fmt.Errorf("fusion: error saving calibration data to %s: %w", path, err)
	}
	glog.Infof("fusion: saved calibration data to %s", path)
	return nil
}

// LoadCalibration reads a Calibration written by Save. Fields missing from the file
// keep their defaults.
func LoadCalibration(path string) (Calibration, error) {
	if path == "" {
		path = DefaultCalibrationPath
	}
	c := DefaultCalibration()
	buf, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("fusion: error reading calibration data from %s: %w", path, err)
	}
	if err := json.Unmarshal(buf, &c); err != nil {
		return DefaultCalibration(), fmt.Errorf("fusion: error reading calibration data from %s: %w", path, err)
	}
	return c, nil
}
