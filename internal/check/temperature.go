package check

import (
	"k8s.io/utils/ptr"

	"github.com/kubeadapt/gpu-health/internal/snapshot"
	"github.com/kubeadapt/gpu-health/pkg/model"
)

// Temperature thresholds in degrees Celsius.
const (
	TemperatureWarnCelsius = 85
	TemperatureFailCelsius = 95
)

// Temperature grades the GPU core temperature.
type Temperature struct{}

// Kind implements Check.
func (Temperature) Kind() model.CheckKind { return model.CheckTemperature }

// Evaluate implements Check.
func (Temperature) Evaluate(s *snapshot.DeviceSnapshot) model.CheckVerdict {
	if s.TemperatureCelsius == nil {
		return verdict(model.CheckTemperature, model.StatusUnknown, nil)
	}

	t := *s.TemperatureCelsius
	value := ptr.To(float64(t))
	switch {
	case t < TemperatureWarnCelsius:
		return verdict(model.CheckTemperature, model.StatusPass, value)
	case t < TemperatureFailCelsius:
		return verdict(model.CheckTemperature, model.StatusWarn, value)
	default:
		return verdict(model.CheckTemperature, model.StatusFail, value)
	}
}
