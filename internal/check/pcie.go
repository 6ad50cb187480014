package check

import (
	"k8s.io/utils/ptr"

	"github.com/kubeadapt/gpu-health/internal/snapshot"
	"github.com/kubeadapt/gpu-health/pkg/model"
)

// PCIeLink warns when the negotiated link width is below the device maximum,
// which points at a seating or riser fault. Generation is not graded: idle
// GPUs downshift their link generation to save power. The reported value is
// the current width.
//
// PCIeLink is not part of Default; register it explicitly.
type PCIeLink struct{}

// Kind implements Check.
func (PCIeLink) Kind() model.CheckKind { return model.CheckPCIeLink }

// Evaluate implements Check.
func (PCIeLink) Evaluate(s *snapshot.DeviceSnapshot) model.CheckVerdict {
	if s.PCIe == nil || s.PCIe.MaxWidth <= 0 {
		return verdict(model.CheckPCIeLink, model.StatusUnknown, nil)
	}

	value := ptr.To(float64(s.PCIe.CurrentWidth))
	if s.PCIe.CurrentWidth < s.PCIe.MaxWidth {
		return verdict(model.CheckPCIeLink, model.StatusWarn, value)
	}
	return verdict(model.CheckPCIeLink, model.StatusPass, value)
}
