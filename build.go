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
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

// BuildConfig holds the knobs a build is run with: how many commands may
// run at once, how many pool-bound commands may run at once for the
// console, and how many failures to tolerate before giving up early.
type BuildConfig struct {
	Parallelism      int `validate:"required,gt=0"`
	FailuresAllowed  int `validate:"gte=0"`
	ConsolePoolDepth int `validate:"gte=0"`
	DryRun           bool
	Verbose          bool
}

// DefaultBuildConfig runs one job at a time, stops at the first failure and
// gives the console pool a depth of one; callers typically override
// Parallelism from flags before use.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{Parallelism: 1, FailuresAllowed: 1, ConsolePoolDepth: 1}
}

// Validate rejects a nonsensical configuration before a Builder is built
// from it, using the same struct-tag validator the rest of the ambient
// stack uses for CLI-derived config.
func (c BuildConfig) Validate() error {
	return validate.Struct(c)
}

var validate = validator.New()

// Builder drives a build to completion: it owns the ready queue, the set
// of in-flight jobs, and every piece of build-wide state a running edge
// might need (disk access, status reporting, metrics, tracing).
type Builder struct {
	State  *State
	Disk   DiskInterface
	Config BuildConfig
	status *StatusPrinter
	tracer trace.Tracer

	jobRunner
	ready   edgeQueue
	failed  int
	metrics buildMetrics
}

// NewBuilder wires a Builder around an already-parsed graph. The graph's
// console pool depth is overridden from config, since the manifest itself
// has no syntax to declare it.
func NewBuilder(state *State, disk DiskInterface, config BuildConfig) *Builder {
	if p := state.LookupPool("console"); p != nil && config.ConsolePoolDepth > 0 {
		p.Depth = config.ConsolePoolDepth
	}
	return &Builder{
		State:   state,
		Disk:    disk,
		Config:  config,
		status:  NewStatusPrinter(config),
		tracer:  otel.Tracer("github.com/nin-build/nin"),
		metrics: newBuildMetrics(),
	}
}

// ErrFailuresExceeded is reported by Run when the number of failed
// commands reaches the configured (non-zero) budget.
var ErrFailuresExceeded = errors.New("cannot make progress due to previous errors")

// Run schedules targets, then drives the ready queue and the job
// supervisor until the queue is empty, a fatal scheduling error occurs, or
// the failure budget is exhausted. It returns the number of edges it
// handled: finished commands, phony and dry-run edges, and edges whose
// command could not be started for lack of a command binding.
func (b *Builder) Run(ctx context.Context, targets []*Node) (int, error) {
	buildID := uuid.New().String()
	ctx, span := b.tracer.Start(ctx, "Build.Run", trace.WithAttributes(attribute.String("build.id", buildID)))
	defer span.End()
	glog.V(1).Infof("build %s: starting, %d target(s)", buildID, len(targets))

	for _, t := range targets {
		if err := b.BuildAdd(t); err != nil {
			return 0, err
		}
	}

	edgesRun := 0
	var buildErr error

loop:
	for {
		select {
		case <-ctx.Done():
			buildErr = ctx.Err()
			break loop
		default:
		}

		if b.failed > 0 && b.failed >= b.Config.FailuresAllowed && b.Config.FailuresAllowed > 0 {
			buildErr = ErrFailuresExceeded
			break loop
		}

		for len(b.jobs) < b.Config.Parallelism {
			e := b.ready.popFront()
			if e == nil {
				break
			}
			if e.IsPhony() || b.Config.DryRun {
				if err := b.edgedone(e, true); err != nil {
					buildErr = err
					break loop
				}
				edgesRun++
				continue
			}
			j, err := b.startEdge(ctx, e)
			if err != nil {
				if errors.Is(err, errNoCommand) {
					glog.Warningf("rule '%s' has no command", e.Rule.Name)
					b.failed++
					if err := b.edgedone(e, false); err != nil {
						buildErr = err
						break loop
					}
					edgesRun++
					continue
				}
				buildErr = err
				break loop
			}
			b.jobs = append(b.jobs, j)
		}

		if len(b.jobs) == 0 {
			if b.ready.empty() {
				break loop
			}
			// Every remaining ready edge is blocked behind a full pool;
			// nothing left to do but wait on the jobs already running.
			continue
		}

		if err := b.jobwork(untilAnyFinished); err != nil {
			buildErr = err
			break loop
		}

		for _, j := range b.finished() {
			success, err := b.jobdone(j)
			b.removeJob(j)
			if err != nil {
				buildErr = multierr.Append(buildErr, err)
				continue
			}
			edgesRun++
			if !success {
				glog.Warningf("failed: %s", j.edge.EvaluateCommand())
			}
		}
		if buildErr != nil {
			break loop
		}
	}

	if buildErr == nil && b.failed > 0 {
		buildErr = fmt.Errorf("subcommand(s) failed")
	}
	return edgesRun, buildErr
}

// untilAnyFinished is passed to poll(2) as a negative timeout, meaning
// block indefinitely: the build loop has no other work while every slot
// is occupied by a job that has not produced output yet.
const untilAnyFinished = -1

// startEdge prepares e's output directories and response file, then spawns
// its command. If the command fails to start, any response file already
// written is unlinked: it never gets the chance to be consumed and must
// not survive the attempt.
func (b *Builder) startEdge(ctx context.Context, e *Edge) (*job, error) {
	_, span := b.tracer.Start(ctx, e.outputsString())
	defer span.End()

	for _, out := range e.Outputs {
		if err := b.Disk.MakeDirs(out.Path); err != nil {
			return nil, err
		}
	}
	rspfile := e.GetBinding("rspfile")
	if rspfile != "" {
		content := e.GetBinding("rspfile_content")
		if err := b.Disk.WriteFile(rspfile, []byte(content)); err != nil {
			return nil, err
		}
	}
	if b.status != nil {
		b.status.EdgeStarted(e)
	}
	j, err := b.jobstart(e)
	if err != nil {
		if rspfile != "" {
			b.Disk.RemoveFile(rspfile)
		}
		return nil, err
	}
	return j, nil
}

func (b *Builder) removeJob(j *job) {
	for i, other := range b.jobs {
		if other == j {
			b.jobs = append(b.jobs[:i], b.jobs[i+1:]...)
			return
		}
	}
}
