//go:build linux

/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package nvidia

// This file handles the search for the NVML library (libnvidia-ml.so.1) in linux.

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"k8s.io/klog/v2"
)

const (
	// LibraryPathEnv is the name of the environment variable with the search paths (":" separated) for the
	// NVML library. If set, only these paths are searched.
	LibraryPathEnv = "GPUDEVICES_NVML_LIBRARY_PATH"

	// LibraryName is the file name of the NVML library.
	LibraryName = "libnvidia-ml.so.1"
)

var (
	reLdConfInclude = regexp.MustCompile(`^\s*include\s*(.*)$`)
	reLdConfComment = regexp.MustCompile(`^\s*#`)
	reLdConfPath    = regexp.MustCompile(`^\s*(.+?)\s*$`)

	// systemLibraryPaths are searched last.
	systemLibraryPaths = []string{"/usr/lib/x86_64-linux-gnu", "/usr/lib/aarch64-linux-gnu", "/usr/lib64", "/usr/lib"}
)

// LibrarySearchPaths returns the directories where to search for the NVML library, in order.
//
// If LibraryPathEnv is set, only its paths are returned. Otherwise, it returns the absolute paths in
// LD_LIBRARY_PATH, the paths configured in /etc/ld.so.conf (and its includes) and the standard system paths.
func LibrarySearchPaths() []string {
	if nvmlPaths, found := os.LookupEnv(LibraryPathEnv); found {
		return slices.DeleteFunc(strings.Split(nvmlPaths, ":"), func(p string) bool {
			return p == "" // Remove empty paths.
		})
	}
	var paths []string
	for _, ldPath := range strings.Split(os.Getenv("LD_LIBRARY_PATH"), ":") {
		if ldPath == "" || !path.IsAbs(ldPath) {
			// No empty or relative paths.
			continue
		}
		paths = append(paths, ldPath)
	}
	paths = loadLibraryPaths(paths, "/etc/ld.so.conf")
	return append(paths, systemLibraryPaths...)
}

// loadLibraryPaths appends to paths the directories listed in an ld.so.conf formatted file, following
// its "include" entries.
func loadLibraryPaths(paths []string, fileWithIncludes string) []string {
	klog.V(2).Infof("Loading paths for libraries from %q", fileWithIncludes)
	file, err := os.Open(fileWithIncludes)
	if err != nil {
		klog.V(1).Infof("Failed to load paths for libraries from %q: %v", fileWithIncludes, err)
		return paths
	}
	defer func() { _ = file.Close() }()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if parts := reLdConfInclude.FindStringSubmatch(line); len(parts) > 0 {
			pattern := parts[1]
			if !path.IsAbs(pattern) {
				pattern = filepath.Join(filepath.Dir(fileWithIncludes), pattern)
			}
			klog.V(2).Infof("loadLibraryPaths: include %q", pattern)
			files, err := filepath.Glob(pattern)
			if err != nil {
				klog.Errorf("Failed to load paths for libraries while expanding include entry %q: %v", pattern, err)
				continue
			}
			for _, includeFile := range files {
				paths = loadLibraryPaths(paths, includeFile)
			}

		} else if reLdConfComment.MatchString(line) {
			klog.V(2).Infof("loadLibraryPaths: comment %q", line)

		} else if parts := reLdConfPath.FindStringSubmatch(line); len(parts) > 0 {
			klog.V(2).Infof("loadLibraryPaths: path %q", parts[1])
			paths = append(paths, parts[1])
		}
	}
	if err := scanner.Err(); err != nil {
		klog.Errorf("Error while loading paths for libraries from %q: %v", fileWithIncludes, err)
	}
	return paths
}

// FindLibrary returns the path to the first NVML library found in the given search paths.
func FindLibrary(searchPaths []string) (libraryPath string, found bool) {
	for _, dir := range searchPaths {
		candidate := filepath.Join(dir, LibraryName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}
