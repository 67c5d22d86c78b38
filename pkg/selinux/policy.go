// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package selinux

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	fp "path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/purecloudlabs/ginit/pkg/log"

	"github.com/google/uuid"
)

// LoadPolicy loads SELinux policy into the kernel, choosing the policy
// variant in priority order.
func (l *Loader) LoadPolicy() error {
	if l.isSplitPolicyDevice() {
		return l.loadSplitPolicy()
	}
	return l.loadMonolithicPolicy()
}

func (l *Loader) isSplitPolicyDevice() bool {
	_, err := os.Stat(l.PlatCIL)
	return err == nil
}

// The precompiled policy on the vendor image is only usable if it was built
// against the platform policy the system image actually carries; the two
// sha256 stamp files must agree, first line to first line, both non-empty.
func (l *Loader) findPrecompiledSplitPolicy() (string, bool) {
	if _, err := os.Stat(l.PrecompiledPolicy); err != nil {
		return "", false
	}
	actualPlatID, err := readFirstLine(l.PlatCILSha)
	if err != nil {
		log.Logf("reading %s: %s", l.PlatCILSha, err)
		return "", false
	}
	precompiledPlatID, err := readFirstLine(l.PrecompiledPlatSha)
	if err != nil {
		log.Logf("reading %s: %s", l.PrecompiledPlatSha, err)
		return "", false
	}
	if actualPlatID == "" || actualPlatID != precompiledPlatID {
		return "", false
	}
	return l.PrecompiledPolicy, true
}

// Split policy consists of three CIL files: platform, non-platform, and a
// mapping policy preserving forward compatibility between the two. The
// compiler turns them into a single monolithic file which is then loaded.
func (l *Loader) loadSplitPolicy() error {
	if precompiled, ok := l.findPrecompiledSplitPolicy(); ok {
		if err := l.Kernel.LoadPolicy(precompiled); err != nil {
			return fmt.Errorf("loading %s: %w", precompiled, err)
		}
		return nil
	}
	// no suitable precompiled policy

	log.Logf("Compiling SELinux policy")

	vers, err := l.Kernel.PolicyVers()
	if err != nil {
		return fmt.Errorf("determining highest policy version supported by kernel: %w", err)
	}

	// output lands on the early tmpfs; the name must not collide with a
	// previous boot's leftover
	compiled := fp.Join(l.TmpDir, "sepolicy."+uuid.New().String())
	defer os.Remove(compiled)

	args := []string{
		l.PlatCIL,
		"-M", "true",
		//target the highest policy language version supported by the kernel
		"-c", strconv.Itoa(vers),
		l.MappingCIL,
		l.NonPlatCIL,
		"-o", compiled,
		//we don't care about file_contexts output by the compiler
		"-f", l.CompileNull,
	}
	if !l.runCompiler(args) {
		return fmt.Errorf("compiling split policy failed")
	}

	log.Logf("Loading compiled SELinux policy")
	if err := l.Kernel.LoadPolicy(compiled); err != nil {
		return fmt.Errorf("loading %s: %w", compiled, err)
	}
	return nil
}

func (l *Loader) loadMonolithicPolicy() error {
	log.Vlogf("Loading SELinux policy from monolithic file")
	if err := l.Kernel.LoadPolicy(l.MonolithicPolicy); err != nil {
		return fmt.Errorf("loading monolithic policy: %w", err)
	}
	return nil
}

//stderr capture stops logging past this; a compiler spewing more is broken
const compilerOutputCap = 1 << 20

// Runs the policy compiler, surfacing its stderr line by line. Returns true
// iff the child exited 0.
func (l *Loader) runCompiler(args []string) bool {
	cmd := exec.Command(l.CompilerPath, args...)
	cmd.Env = l.Env
	stderr, err := cmd.StderrPipe()
	if err != nil {
		log.Logf("stderr pipe for %s: %s", l.CompilerPath, err)
		return false
	}
	log.Logf("Running %v...", cmd.Args)
	if err := cmd.Start(); err != nil {
		log.Logf("starting %s: %s", l.CompilerPath, err)
		return false
	}

	captured := 0
	truncated := false
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		captured += len(line) + 1
		if captured > compilerOutputCap {
			truncated = true
			//keep draining so the child doesn't block on a full pipe
			for scanner.Scan() {
			}
			break
		}
		log.Logf("%s: %s", l.CompilerPath, line)
	}
	if truncated {
		log.Logf("%s: output truncated at %d bytes", l.CompilerPath, compilerOutputCap)
	}

	err = cmd.Wait()
	if err == nil {
		return true
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			log.Logf("%s killed by signal %d", l.CompilerPath, ws.Signal())
		} else {
			log.Logf("%s exited with status %d", l.CompilerPath, ee.ExitCode())
		}
	} else {
		log.Logf("waiting for %s: %s", l.CompilerPath, err)
	}
	return false
}

func readFirstLine(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return line, nil
}
