package feature

import "time"

// NumInputs is the length of the model input vector.
const NumInputs = 5

// Feature indices. The order must match the normalisation parameters and the
// model's training-time column order.
const (
	FeatAvgMoisture = iota
	FeatSlope
	FeatTemperature
	FeatHour
	FeatBattery
)

// Names lists the feature names in vector order.
var Names = [NumInputs]string{"avg_moisture", "slope", "temp_c", "hour", "battery_pct"}

// Vector is a fixed-length model input.
type Vector [NumInputs]float32

// Build assembles a raw feature vector in model order.
func Build(avgMoisture, slope, tempC, hour, batteryPct float32) Vector {
	var v Vector
	v[FeatAvgMoisture] = avgMoisture
	v[FeatSlope] = slope
	v[FeatTemperature] = tempC
	v[FeatHour] = hour
	v[FeatBattery] = batteryPct
	return v
}

// HourOfDay returns the UTC hour of t scaled to [0,1). The training data used
// whole UTC hours divided by 24.
func HourOfDay(t time.Time) float32 {
	return float32(t.UTC().Hour()) / 24
}
