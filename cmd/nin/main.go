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

// Command nin runs a ninja-compatible build graph to completion.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"github.com/nin-build/nin"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		jobs       = pflag.IntP("jobs", "j", runtime.NumCPU()-1, "number of concurrent jobs to run")
		keepGoing  = pflag.IntP("keep-going", "k", 1, "keep going until N failures (0 means never stop)")
		chdir      = pflag.StringP("chdir", "C", "", "change to this directory before doing anything else")
		file       = pflag.StringP("file", "f", "build.ninja", "path to the root manifest")
		verbose    = pflag.BoolP("verbose", "v", false, "show full command lines instead of descriptions")
		dryRun     = pflag.Bool("dry-run", false, "don't actually run commands, just mark targets as up to date")
		consoleJob = pflag.Int("console-pool-depth", 1, "concurrency of the reserved console pool")
	)
	pflag.Parse()

	if *jobs <= 0 {
		*jobs = 1
	}
	if *chdir != "" {
		if err := os.Chdir(*chdir); err != nil {
			glog.Errorf("chdir: %v", err)
			return 1
		}
	}

	config := nin.BuildConfig{
		Parallelism:      *jobs,
		FailuresAllowed:  *keepGoing,
		ConsolePoolDepth: *consoleJob,
		DryRun:           *dryRun,
		Verbose:          *verbose,
	}
	if err := config.Validate(); err != nil {
		glog.Errorf("invalid configuration: %v", err)
		return 1
	}

	state := nin.NewState()
	parser := nin.NewManifestParser(state, nin.RealFileReader{}, nin.ManifestParserOptions{})
	ctx := context.Background()
	if err := parser.Load(ctx, *file); err != nil {
		fmt.Fprintf(os.Stderr, "nin: error: %v\n", err)
		return 1
	}

	targets, err := resolveTargets(state, pflag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "nin: error: %v\n", err)
		return 1
	}

	builder := nin.NewBuilder(state, nin.RealDisk{}, config)
	ran, err := builder.Run(ctx, targets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nin: error: %v\n", err)
		return 1
	}
	if ran == 0 {
		fmt.Println("nin: no work to do.")
	}
	return 0
}

// resolveTargets turns CLI arguments into the nodes to build, falling
// back to the manifest's declared (or inferred) default targets when none
// were named on the command line.
func resolveTargets(state *nin.State, args []string) ([]*nin.Node, error) {
	if len(args) == 0 {
		return state.DefaultNodes()
	}
	nodes := make([]*nin.Node, 0, len(args))
	for _, a := range args {
		n := state.LookupNode(a)
		if n == nil {
			if suggestion := state.SpellcheckNode(a); suggestion != "" {
				return nil, fmt.Errorf("unknown target '%s', did you mean '%s'?", a, suggestion)
			}
			return nil, fmt.Errorf("unknown target '%s'", a)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
