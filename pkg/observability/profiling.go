package observability

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// StartProfiling 在设置 PYROSCOPE_SERVER_ADDRESS 时开启持续性能分析，未设置则直接返回
func StartProfiling(appName string) *pyroscope.Profiler {
	addr := strings.TrimSpace(os.Getenv("PYROSCOPE_SERVER_ADDRESS"))
	if addr == "" {
		return nil
	}

	runtime.SetMutexProfileFraction(5)
	runtime.SetBlockProfileRate(5)

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   addr,
		Tags:            map[string]string{"hostname": hostname()},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileBlockCount,
		},
	})
	if err != nil {
		fmt.Printf("[WARN] pyroscope start failed: %v\n", err)
		return nil
	}
	fmt.Printf("[STARTUP] Pyroscope profiling enabled server=%s app=%s\n", addr, appName)
	return profiler
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
