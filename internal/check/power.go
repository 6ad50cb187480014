package check

import (
	"k8s.io/utils/ptr"

	"github.com/kubeadapt/gpu-health/internal/snapshot"
	"github.com/kubeadapt/gpu-health/pkg/model"
)

// PowerWarnPercent is the share of the power limit at which draw warns.
const PowerWarnPercent = 95.0

// Power warns when the draw approaches the enforced power limit. There is
// no fail tier. The reported value is the draw in watts.
type Power struct{}

// Kind implements Check.
func (Power) Kind() model.CheckKind { return model.CheckPower }

// Evaluate implements Check.
func (Power) Evaluate(s *snapshot.DeviceSnapshot) model.CheckVerdict {
	if s.PowerDrawWatts == nil || s.PowerLimitWatts == nil || *s.PowerLimitWatts <= 0 {
		return verdict(model.CheckPower, model.StatusUnknown, nil)
	}

	draw := *s.PowerDrawWatts
	percent := draw / *s.PowerLimitWatts * 100
	value := ptr.To(round2(draw))
	if percent < PowerWarnPercent {
		return verdict(model.CheckPower, model.StatusPass, value)
	}
	return verdict(model.CheckPower, model.StatusWarn, value)
}

