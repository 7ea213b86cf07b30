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
	"fmt"
	"os"
	"sync"

	"github.com/golang/glog"
)

// StatusPrinter reports build progress to stderr. It serializes access
// around a running console-pool job: while one is active, other jobs'
// progress lines and buffered output are held back rather than interleaved
// with the console job's direct writes to the real terminal, and are
// written once it finishes.
type StatusPrinter struct {
	mu       sync.Mutex
	verbose  bool
	started  int
	finished int
	total    int
	held     []string
	heldOutput []byte
	consoleBusy bool
}

// NewStatusPrinter creates a printer for a build running under config.
func NewStatusPrinter(config BuildConfig) *StatusPrinter {
	return &StatusPrinter{verbose: config.Verbose}
}

// EdgeStarted records that e's command has begun running and prints its
// progress line, unless a console job currently owns the terminal.
func (s *StatusPrinter) EdgeStarted(e *Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	line := fmt.Sprintf("[%d/%d] %s", s.started, s.total, s.describe(e))
	if s.consoleBusy && !e.UseConsole() {
		s.held = append(s.held, line)
		return
	}
	if e.UseConsole() {
		s.consoleBusy = true
	}
	fmt.Fprintln(os.Stderr, line)
}

// EdgeFinished records e's outcome. Buffered output is emitted on standard
// output whenever there is any and the console pool is idle, regardless of
// success or verbosity: the command's own stdout/stderr is what this is,
// and it belongs on stdout whether or not the command happened to fail.
// Output arriving while a console job runs is held and written to standard
// output when that console job finishes.
func (s *StatusPrinter) EdgeFinished(e *Edge, success bool, output []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished++
	if e.UseConsole() {
		s.consoleBusy = false
		for _, line := range s.held {
			fmt.Fprintln(os.Stderr, line)
		}
		s.held = s.held[:0]
		os.Stdout.Write(s.heldOutput)
		s.heldOutput = s.heldOutput[:0]
	}
	if !success {
		fmt.Fprintf(os.Stderr, "FAILED: %s\n", s.describe(e))
	}
	if len(output) > 0 {
		if s.consoleBusy {
			s.heldOutput = append(s.heldOutput, output...)
		} else {
			os.Stdout.Write(output)
		}
	}
	if s.verbose {
		glog.V(1).Infof("finished %s", s.describe(e))
	}
}

func (s *StatusPrinter) describe(e *Edge) string {
	if d := e.GetBinding("description"); d != "" && !s.verbose {
		return d
	}
	return e.EvaluateCommand()
}

// SetTotal records the number of edges this build expects to run, for
// the "[x/total]" progress prefix.
func (s *StatusPrinter) SetTotal(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = n
}
