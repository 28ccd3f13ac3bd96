//go:build linux

package nvidia

import (
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

var (
	hasNvidiaGPUOnce  sync.Once
	hasNvidiaGPUCache bool
)

// HasNvidiaGPU tries to guess if there is an actual Nvidia GPU installed (as opposed to only the drivers
// installed, but no actual hardware).
// It does that by checking for the presence of the device files in /dev/nvidia*, and falls back to running
// nvidia-smi. The result is cached.
func HasNvidiaGPU() bool {
	hasNvidiaGPUOnce.Do(func() {
		hasNvidiaGPUCache = detectNvidiaGPU("/dev/nvidia*")
	})
	return hasNvidiaGPUCache
}

func detectNvidiaGPU(devicesPattern string) bool {
	matches, err := filepath.Glob(devicesPattern)
	if err != nil {
		klog.Errorf("Failed to figure out if there is an Nvidia GPU installed while searching for files matching %q: %v", devicesPattern, err)
	}
	if len(matches) > 0 {
		return true
	}
	klog.V(1).Infof("No NVidia devices found matching %q, checking nvidia-smi command instead.", devicesPattern)

	if _, err := exec.LookPath("nvidia-smi"); err == nil {
		output, err := exec.Command("nvidia-smi").CombinedOutput()
		if err == nil && strings.Contains(string(output), "NVIDIA-SMI") {
			return true
		}
	}
	klog.V(1).Infof("nvidia-smi command did not succeed, assuming there are no GPU cards installed in the system.")
	return false
}
