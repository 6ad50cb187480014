package check

import (
	"k8s.io/utils/ptr"

	"github.com/kubeadapt/gpu-health/internal/snapshot"
	"github.com/kubeadapt/gpu-health/pkg/model"
)

// ECC fails on any uncorrected ECC error. Devices without ECC counters are
// not applicable rather than unknown: many GPU models have no ECC memory.
type ECC struct{}

// Kind implements Check.
func (ECC) Kind() model.CheckKind { return model.CheckECCErrors }

// Evaluate implements Check.
func (ECC) Evaluate(s *snapshot.DeviceSnapshot) model.CheckVerdict {
	if s.ECC == nil {
		return verdict(model.CheckECCErrors, model.StatusNotApplicable, nil)
	}

	n := s.ECC.Uncorrected
	if n == 0 {
		return verdict(model.CheckECCErrors, model.StatusPass, ptr.To(0.0))
	}
	return verdict(model.CheckECCErrors, model.StatusFail, ptr.To(float64(n)))
}
