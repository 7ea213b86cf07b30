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

//go:build !windows
// +build !windows

package nin

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// job tracks one in-flight subprocess: the edge it is running, the
// exec.Cmd driving it, and the raw read end of the pipe its output was
// redirected to.
//
// The read end is kept as a bare fd rather than an *os.File on purpose:
// os.File wires into the runtime's netpoller and Read blocks the calling
// goroutine until data arrives, which would silently turn this back into
// one-goroutine-per-job. Driving unix.Poll and unix.Read directly over the
// fd keeps the whole build loop on a single goroutine.
type job struct {
	edge    *Edge
	cmd     *exec.Cmd
	fd      int
	buf     []byte
	eof     bool
	failed  bool
	started time.Time
	cancel  context.CancelFunc
}

// jobRunner holds the set of currently in-flight jobs. It is embedded in
// Builder so the scheduler and the job supervisor share one slice without
// every build.go call site spelling out its storage.
type jobRunner struct {
	jobs []*job
}

// errNoCommand marks a job-start failure for a rule with no resolvable
// command binding. samurai's jobstart treats a missing command the same
// as any other failure to get the child running (its err2 path): no
// process is spawned and the caller counts it as a failed command rather
// than a fatal scheduling error.
var errNoCommand = errors.New("no command")

// jobstart spawns e's command. Every job, console-pool or not, gets a
// pipe: a console-pool edge still inherits the real stdio so its output
// goes straight to the terminal, but the pipe's write end is also handed
// to the child as an extra, unused, inherited descriptor so that poll
// still sees a clean EOF the moment the child exits. That keeps console
// jobs on the exact same completion path as every other job instead of
// needing a separate "has this process actually exited" check.
func (b *Builder) jobstart(e *Edge) (*job, error) {
	cmdline := e.EvaluateCommand()
	if cmdline == "" {
		return nil, errNoCommand
	}
	ctx, cancel := context.WithCancel(context.Background())
	useConsole := e.UseConsole()
	cmd := createCmd(ctx, cmdline, useConsole, false)

	r, w, err := pipe2()
	if err != nil {
		cancel()
		return nil, err
	}
	wf := os.NewFile(uintptr(w), "pipe-w")

	if useConsole {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.ExtraFiles = []*os.File{wf}
	} else {
		cmd.Stdout = wf
		cmd.Stderr = wf
	}
	if err := cmd.Start(); err != nil {
		wf.Close()
		unix.Close(r)
		cancel()
		return nil, err
	}
	// The write end is now duplicated into the child; our copy must close
	// so that EOF on the read end reflects the child (and only the child)
	// exiting.
	wf.Close()
	if err := unix.SetNonblock(r, true); err != nil {
		unix.Close(r)
		cancel()
		return nil, err
	}
	return &job{edge: e, cmd: cmd, fd: r, started: time.Now(), cancel: cancel}, nil
}

// pipe2 creates a CLOEXEC pipe and returns its two raw descriptors.
func pipe2() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

// jobwork blocks in poll(2) over every running job's output fd until at
// least one is readable or has hung up, then drains every ready fd once.
// It is the sole blocking call in the build loop.
func (b *Builder) jobwork(timeoutMillis int) error {
	var pollfds []unix.PollFd
	var polled []*job
	for _, j := range b.jobs {
		if j.eof {
			continue
		}
		pollfds = append(pollfds, unix.PollFd{Fd: int32(j.fd), Events: unix.POLLIN})
		polled = append(polled, j)
	}
	if len(pollfds) == 0 {
		return nil
	}

	_, err := unix.Poll(pollfds, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	buf := make([]byte, 4096)
	for i, pfd := range pollfds {
		if pfd.Revents == 0 {
			continue
		}
		j := polled[i]
		for {
			n, err := unix.Read(j.fd, buf)
			if n > 0 {
				j.buf = append(j.buf, buf[:n]...)
			}
			if n <= 0 {
				if err == unix.EAGAIN {
					break
				}
				if err != nil {
					// A genuine read(2) failure, not EOF: the job cannot be
					// trusted to finish on its own, so terminate it rather
					// than waiting on a pipe that will never produce a
					// clean hangup.
					j.failed = true
					unix.Kill(j.cmd.Process.Pid, unix.SIGTERM)
				}
				// n == 0 with no error is EOF: the write end closed.
				j.eof = true
				break
			}
			if n < len(buf) {
				break
			}
		}
	}
	return nil
}

// finished reports which in-flight jobs have hit EOF on their output pipe,
// which for every job (console-pool included, see jobstart) coincides with
// its process exiting.
func (b *Builder) finished() []*job {
	var done []*job
	for _, j := range b.jobs {
		if j.eof {
			done = append(done, j)
		}
	}
	return done
}

// jobdone waits for j's process to exit, folds its output into the status
// line, and releases its pool slot. It returns the edge's success. A job
// already marked failed by jobwork (a read(2) failure that killed the
// child) is never reported successful even if Wait happens to return nil.
func (b *Builder) jobdone(j *job) (bool, error) {
	waitErr := j.cmd.Wait()
	unix.Close(j.fd)
	j.cancel()

	success := waitErr == nil && !j.failed
	b.metrics.observeEdge(j.edge, success, time.Since(j.started))
	if b.status != nil {
		b.status.EdgeFinished(j.edge, success, j.buf)
	}
	if !success {
		b.failed++
	}
	if err := b.edgedone(j.edge, success); err != nil {
		return success, err
	}
	return success, nil
}

// edgedone releases e's pool slot, unlinks any response file it wrote (it
// has served its purpose whether or not the command succeeded), and on
// success restats its outputs and wakes any consumer this was the last
// blocking input for.
func (b *Builder) edgedone(e *Edge, success bool) error {
	b.release(e)
	if rspfile := e.GetBinding("rspfile"); rspfile != "" {
		if err := b.Disk.RemoveFile(rspfile); err != nil {
			return err
		}
	}
	if !success {
		return nil
	}
	for _, out := range e.Outputs {
		if err := nodestat(b.Disk, out); err != nil {
			return err
		}
		b.nodeDone(out)
	}
	return nil
}
