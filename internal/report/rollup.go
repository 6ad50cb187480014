package report

import "github.com/kubeadapt/gpu-health/pkg/model"

// Rollup reduces every verdict to one status: any fail is fail, otherwise
// any warn is warn, otherwise pass. Unknown and not-applicable verdicts
// never move the result, so a report with no devices passes.
func Rollup(results []model.DeviceHealthResult) model.Status {
	status := model.StatusPass
	for _, r := range results {
		for _, v := range r.Checks {
			switch v.Status {
			case model.StatusFail:
				return model.StatusFail
			case model.StatusWarn:
				status = model.StatusWarn
			}
		}
	}
	return status
}
