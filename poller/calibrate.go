package poller

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/stratux/imufusion/fusion"
	"github.com/stratux/imufusion/sensors"
)

/*
EstimateDrift averages the angular velocity of a stationary device over samples
polls and turns it into per-update drift constants for a filter running at
interval. A gyro bias b then integrates to b*interval per update, which is what
the filter subtracts.
*/
func EstimateDrift(ctx context.Context, d Device, samples int, interval time.Duration, yawOffset float64) (fusion.Calibration, error) {
	if samples <= 0 {
		return fusion.Calibration{}, errors.New("poller: need at least one sample")
	}

	var sum sensors.Triple
	var n int
	err := Poll(ctx, []Device{d}, interval, samples, PublisherFunc(func(b *sensors.Bundle) error {
		sum.X += b.AngularVelocity.X
		sum.Y += b.AngularVelocity.Y
		sum.Z += b.AngularVelocity.Z
		n++
		return nil
	}))
	if err != nil {
		return fusion.Calibration{}, err
	}
	if n == 0 {
		return fusion.Calibration{}, errors.New("poller: no samples read")
	}

	drift := sum.Scale(interval.Seconds() / float64(n))
	glog.Infof("poller: estimated drift from %d samples: %+v", n, drift)
	return fusion.Calibration{D1: drift.X, D2: drift.Y, D3: drift.Z, YawOffset: yawOffset}, nil
}
