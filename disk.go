// Copyright 2011 Google Inc. All Rights Reserved.
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
	"os"
	"path/filepath"
)

// DiskInterface is the glue contract onto the filesystem: stat'ing nodes,
// creating parent directories, and writing response files. A real build
// uses RealDisk; tests substitute a fake.
type DiskInterface interface {
	Stat(path string) (Mtime, error)
	MakeDirs(path string) error
	WriteFile(path string, content []byte) error
	RemoveFile(path string) error
}

// RealDisk is the DiskInterface backed by the actual filesystem.
type RealDisk struct{}

// Stat populates a node's tri-state mtime by querying the filesystem: a
// missing file is not an error, it is MtimeMissing.
func (RealDisk) Stat(path string) (Mtime, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Mtime{Nsec: MtimeMissing}, nil
		}
		return Mtime{Nsec: MtimeMissing}, err
	}
	mt := fi.ModTime()
	return Mtime{Sec: mt.Unix(), Nsec: int64(mt.Nanosecond())}, nil
}

// MakeDirs ensures every parent directory of path exists.
func (RealDisk) MakeDirs(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "/" {
		return nil
	}
	return os.MkdirAll(dir, 0o777)
}

// WriteFile creates or truncates the file at path with content.
func (RealDisk) WriteFile(path string, content []byte) error {
	return os.WriteFile(path, content, 0o666)
}

// RemoveFile unlinks path, tolerating it already being gone.
func (RealDisk) RemoveFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// nodestat is the sole mutator of a node's mtime: after it runs, the node's
// Nsec field is never MtimeUnknown again.
func nodestat(disk DiskInterface, n *Node) error {
	mt, err := disk.Stat(n.Path)
	if err != nil {
		return err
	}
	n.Mtime = mt
	return nil
}
