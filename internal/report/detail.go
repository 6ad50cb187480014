package report

import (
	"math"

	"k8s.io/utils/ptr"

	"github.com/kubeadapt/gpu-health/internal/snapshot"
	"github.com/kubeadapt/gpu-health/pkg/model"
)

// Units reported in device detail sections.
const (
	TemperatureUnit = "C"
	PowerUnit       = "W"
)

// Detail converts a snapshot into its serialized evidence block. Unavailable
// metrics become nil sections.
func Detail(s *snapshot.DeviceSnapshot) model.DeviceDetail {
	d := model.DeviceDetail{
		Index:              s.Index,
		Name:               s.Identity.Name,
		UUID:               s.Identity.UUID,
		Processes:          s.ActiveProcessCount,
		ProcessesAvailable: s.ProcessCountKnown,
	}

	if m := s.Memory; m != nil {
		d.Memory = &model.MemoryDetail{Total: m.TotalBytes, Free: m.FreeBytes, Used: m.UsedBytes}
		if m.TotalBytes > 0 {
			d.Memory.UtilizationPercent = ptr.To(round2(float64(m.UsedBytes) / float64(m.TotalBytes) * 100))
		}
	}

	if s.TemperatureCelsius != nil {
		d.Temperature = &model.TemperatureDetail{GPU: *s.TemperatureCelsius, Unit: TemperatureUnit}
	}

	if u := s.Utilization; u != nil {
		d.Utilization = &model.UtilizationDetail{GPU: u.GPUPercent, Memory: u.MemoryPercent}
	}

	if s.PowerDrawWatts != nil || s.PowerLimitWatts != nil {
		d.Power = &model.PowerDetail{
			Draw:  roundPtr(s.PowerDrawWatts),
			Limit: roundPtr(s.PowerLimitWatts),
			Unit:  PowerUnit,
		}
	}

	if p := s.PCIe; p != nil {
		d.PCIe = &model.PCIeDetail{
			CurrentGen:   p.CurrentGeneration,
			CurrentWidth: p.CurrentWidth,
			MaxGen:       p.MaxGeneration,
			MaxWidth:     p.MaxWidth,
		}
	}

	if e := s.ECC; e != nil {
		d.ECCErrors = &model.ECCDetail{Corrected: e.Corrected, Uncorrected: e.Uncorrected}
	}

	return d
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr.To(round2(*v))
}
