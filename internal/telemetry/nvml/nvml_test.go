//go:build linux && cgo

package nvml

import (
	"context"
	"errors"
	"testing"

	nvmllib "github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/NVIDIA/go-nvml/pkg/nvml/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeadapt/gpu-health/internal/telemetry"
)

func mockDevice() *mock.Device {
	return &mock.Device{
		GetNameFunc: func() (string, nvmllib.Return) { return "NVIDIA A100-SXM4-80GB", nvmllib.SUCCESS },
		GetUUIDFunc: func() (string, nvmllib.Return) { return "GPU-1b2c3d", nvmllib.SUCCESS },
		GetMemoryInfoFunc: func() (nvmllib.Memory, nvmllib.Return) {
			// 512 MiB reserved by the driver is in neither Used nor Free.
			return nvmllib.Memory{Total: 80 << 30, Free: 60 << 30, Used: 20<<30 - 512<<20}, nvmllib.SUCCESS
		},
		GetTemperatureFunc: func(s nvmllib.TemperatureSensors) (uint32, nvmllib.Return) {
			if s != nvmllib.TEMPERATURE_GPU {
				return 0, nvmllib.ERROR_INVALID_ARGUMENT
			}
			return 63, nvmllib.SUCCESS
		},
		GetUtilizationRatesFunc: func() (nvmllib.Utilization, nvmllib.Return) {
			return nvmllib.Utilization{Gpu: 87, Memory: 41}, nvmllib.SUCCESS
		},
		GetPowerUsageFunc:             func() (uint32, nvmllib.Return) { return 312_456, nvmllib.SUCCESS },
		GetEnforcedPowerLimitFunc:     func() (uint32, nvmllib.Return) { return 400_000, nvmllib.SUCCESS },
		GetCurrPcieLinkGenerationFunc: func() (int, nvmllib.Return) { return 4, nvmllib.SUCCESS },
		GetCurrPcieLinkWidthFunc:      func() (int, nvmllib.Return) { return 16, nvmllib.SUCCESS },
		GetMaxPcieLinkGenerationFunc:  func() (int, nvmllib.Return) { return 4, nvmllib.SUCCESS },
		GetMaxPcieLinkWidthFunc:       func() (int, nvmllib.Return) { return 16, nvmllib.SUCCESS },
		GetTotalEccErrorsFunc: func(t nvmllib.MemoryErrorType, c nvmllib.EccCounterType) (uint64, nvmllib.Return) {
			if c != nvmllib.VOLATILE_ECC {
				return 0, nvmllib.ERROR_INVALID_ARGUMENT
			}
			if t == nvmllib.MEMORY_ERROR_TYPE_UNCORRECTED {
				return 2, nvmllib.SUCCESS
			}
			return 17, nvmllib.SUCCESS
		},
		GetComputeRunningProcessesFunc: func() ([]nvmllib.ProcessInfo, nvmllib.Return) {
			return []nvmllib.ProcessInfo{{Pid: 100}, {Pid: 200}, {Pid: 300}}, nvmllib.SUCCESS
		},
	}
}

func mockLibrary(devices ...nvmllib.Device) *mock.Interface {
	return &mock.Interface{
		InitFunc:           func() nvmllib.Return { return nvmllib.SUCCESS },
		ShutdownFunc:       func() nvmllib.Return { return nvmllib.SUCCESS },
		DeviceGetCountFunc: func() (int, nvmllib.Return) { return len(devices), nvmllib.SUCCESS },
		DeviceGetHandleByIndexFunc: func(i int) (nvmllib.Device, nvmllib.Return) {
			if i < 0 || i >= len(devices) {
				return nil, nvmllib.ERROR_INVALID_ARGUMENT
			}
			return devices[i], nvmllib.SUCCESS
		},
		SystemGetDriverVersionFunc:     func() (string, nvmllib.Return) { return "550.54.15", nvmllib.SUCCESS },
		SystemGetCudaDriverVersionFunc: func() (int, nvmllib.Return) { return 12040, nvmllib.SUCCESS },
		ErrorStringFunc: func(r nvmllib.Return) string {
			switch r {
			case nvmllib.ERROR_NOT_SUPPORTED:
				return "Not Supported"
			case nvmllib.ERROR_LIBRARY_NOT_FOUND:
				return "NVML Shared Library Not Found"
			default:
				return "Unknown Error"
			}
		},
	}
}

func TestProvider_System(t *testing.T) {
	p := NewWithLibrary(mockLibrary(mockDevice(), mockDevice()))
	ctx := context.Background()

	require.NoError(t, p.Init(ctx))
	defer func() { require.NoError(t, p.Shutdown()) }()

	n, err := p.DeviceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	v, err := p.DriverVersion()
	require.NoError(t, err)
	assert.Equal(t, "550.54.15", v)

	cuda, err := p.CUDADriverVersion()
	require.NoError(t, err)
	assert.Equal(t, "12.4", telemetry.FormatCUDAVersion(cuda))

	_, err = p.DeviceByIndex(ctx, 5)
	assert.Error(t, err)
}

func TestProvider_InitFailure(t *testing.T) {
	lib := mockLibrary()
	lib.InitFunc = func() nvmllib.Return { return nvmllib.ERROR_LIBRARY_NOT_FOUND }

	err := NewWithLibrary(lib).Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NVML Shared Library Not Found")
}

func TestDevice_Metrics(t *testing.T) {
	p := NewWithLibrary(mockLibrary(mockDevice()))
	dev, err := p.DeviceByIndex(context.Background(), 0)
	require.NoError(t, err)

	name, err := dev.Name()
	require.NoError(t, err)
	assert.Equal(t, "NVIDIA A100-SXM4-80GB", name)

	uuid, err := dev.UUID()
	require.NoError(t, err)
	assert.Equal(t, "GPU-1b2c3d", uuid)

	mem, err := dev.MemoryInfo()
	require.NoError(t, err)
	assert.Equal(t, mem.Total, mem.Used+mem.Free, "reserved memory is folded into used")
	assert.Equal(t, uint64(20<<30), mem.Used)

	temp, err := dev.Temperature()
	require.NoError(t, err)
	assert.Equal(t, 63, temp)

	util, err := dev.Utilization()
	require.NoError(t, err)
	assert.Equal(t, telemetry.Utilization{GPU: 87, Memory: 41}, util)

	draw, err := dev.PowerDraw()
	require.NoError(t, err)
	assert.InDelta(t, 312.456, draw, 1e-9)

	limit, err := dev.PowerLimit()
	require.NoError(t, err)
	assert.InDelta(t, 400.0, limit, 1e-9)

	link, err := dev.PCIeLink()
	require.NoError(t, err)
	assert.Equal(t, telemetry.PCIeLink{CurrentGeneration: 4, CurrentWidth: 16, MaxGeneration: 4, MaxWidth: 16}, link)

	corrected, err := dev.ECCErrors(telemetry.ECCCorrected)
	require.NoError(t, err)
	assert.Equal(t, uint64(17), corrected)

	uncorrected, err := dev.ECCErrors(telemetry.ECCUncorrected)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), uncorrected)

	procs, err := dev.ComputeProcessCount()
	require.NoError(t, err)
	assert.Equal(t, 3, procs)
}

func TestDevice_NotSupported(t *testing.T) {
	d := mockDevice()
	d.GetTotalEccErrorsFunc = func(nvmllib.MemoryErrorType, nvmllib.EccCounterType) (uint64, nvmllib.Return) {
		return 0, nvmllib.ERROR_NOT_SUPPORTED
	}
	d.GetMaxPcieLinkWidthFunc = func() (int, nvmllib.Return) { return 0, nvmllib.ERROR_UNKNOWN }

	p := NewWithLibrary(mockLibrary(d))
	dev, err := p.DeviceByIndex(context.Background(), 0)
	require.NoError(t, err)

	_, err = dev.ECCErrors(telemetry.ECCCorrected)
	require.Error(t, err)
	assert.True(t, errors.Is(err, telemetry.ErrNotSupported))
	assert.Contains(t, err.Error(), "ecc corrected")

	_, err = dev.PCIeLink()
	require.Error(t, err)
	assert.False(t, errors.Is(err, telemetry.ErrNotSupported))
}
