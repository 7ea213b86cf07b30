// Copyright 2013 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// Version is the engine's own version, checked against a manifest's
// ninja_required_version binding.
const Version = "0.1.0"

// Parse the major/minor components of a version string.
func ParseVersion(version string) (int, int) {
	end := strings.Index(version, ".")
	if end == -1 {
		end = len(version)
	}
	major, _ := strconv.Atoi(keepNumbers(version[:end]))
	minor := 0
	if end != len(version) {
		start := end + 1
		end = strings.Index(version[start:], ".")
		if end == -1 {
			end = len(version)
		} else {
			end += start
		}
		minor, _ = strconv.Atoi(keepNumbers(version[start:end]))
	}
	return major, minor
}

func keepNumbers(s string) string {
	i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if i != -1 {
		return s[:i]
	}
	return s
}

// checkManifestVersion checks whether a manifest's declared
// ninja_required_version is compatible with this engine, returning an error
// if not.
func checkManifestVersion(version string) error {
	binMajor, binMinor := ParseVersion(Version)
	fileMajor, fileMinor := ParseVersion(version)
	if binMajor > fileMajor {
		glog.Warningf("engine version (%s) greater than manifest ninja_required_version (%s); versions may be incompatible.", Version, version)
	} else if (binMajor == fileMajor && binMinor < fileMinor) || binMajor < fileMajor {
		return fmt.Errorf("engine version (%s) incompatible with manifest ninja_required_version (%s)", Version, version)
	}
	return nil
}
