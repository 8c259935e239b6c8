package metrics

import (
	"math"
	"time"

	"machine-efficiency-backend/internal/model"
)

// Build derives the metric row for one device from raw telemetry figures.
// Inputs are clamped so that 0 <= running <= powerOn and efficiency stays
// within [0, 100].
func Build(device model.Device, s model.Shift, start, end time.Time, running int, rpm *int, now time.Time) model.MachineMetric {
	until := now
	if end.Before(until) {
		until = end
	}

	powerOn := int(until.Sub(start) / time.Minute)
	if powerOn < 0 {
		powerOn = 0
	}
	running = clampInt(running, 0, powerOn)

	efficiency := 0.0
	if powerOn > 0 {
		efficiency = float64(running) / float64(powerOn) * 100
		efficiency = math.Round(clampFloat(efficiency, 0, 100)*100) / 100
	}

	currentRPM := 0
	if rpm != nil && *rpm > 0 {
		currentRPM = *rpm
	}

	return model.MachineMetric{
		DeviceID:             device.ID,
		OrganizationID:       device.OrganizationID,
		ShiftID:              s.ID,
		ShiftDate:            start.Format(model.DateLayout),
		PowerOnMinutes:       powerOn,
		RunningMinutes:       running,
		EfficiencyPercentage: efficiency,
		CurrentRPM:           currentRPM,
		LastUpdated:          now.UTC(),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
