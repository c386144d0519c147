// Package exp runs hyperspectral classification experiments: it sets up the
// working directory and log file, trains the configured model over a series
// of seeds and aggregates the accuracy metrics across runs.
package exp

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

const Version = "1.0"

// EnvInfo describes the host environment for the run log.
func EnvInfo() string {
	host, _ := os.Hostname()
	info := []string{
		"version: " + Version,
		"hostname: " + host,
		"platform: " + runtime.GOOS + "/" + runtime.GOARCH,
		"go version: " + runtime.Version(),
		fmt.Sprintf("num cpu: %d", runtime.NumCPU()),
	}
	if cpuid.CPU.BrandName != "" {
		info = append(info, "cpu: "+cpuid.CPU.BrandName)
		info = append(info, fmt.Sprintf("cores: %d physical %d logical",
			cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores))
	}
	if feats := simdFeatures(); len(feats) > 0 {
		info = append(info, "simd: "+strings.Join(feats, " "))
	}
	return strings.Join(info, "\n")
}

func simdFeatures() []string {
	var feats []string
	for _, f := range []struct {
		id   cpuid.FeatureID
		name string
	}{
		{cpuid.AVX, "avx"},
		{cpuid.AVX2, "avx2"},
		{cpuid.FMA3, "fma3"},
		{cpuid.AVX512F, "avx512f"},
		{cpuid.AVX512DQ, "avx512dq"},
	} {
		if cpuid.CPU.Supports(f.id) {
			feats = append(feats, f.name)
		}
	}
	return feats
}
