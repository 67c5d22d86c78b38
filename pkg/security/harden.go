// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package security drives kernel hardening tunables to the strongest value
// the running kernel accepts: mmap address-space randomization bits and
// kernel pointer restriction. Failure to reach the per-architecture minimum
// is fatal - a unit that cannot randomize mmap is not safe to boot.
package security

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/purecloudlabs/ginit/pkg/log"
)

const (
	MmapRndPath       = "/proc/sys/vm/mmap_rnd_bits"
	MmapRndCompatPath = "/proc/sys/vm/mmap_rnd_compat_bits"
	KptrRestrictPath  = "/proc/sys/kernel/kptr_restrict"

	kptrRestrictMin = 2
	kptrRestrictMax = 4
)

//the single fatal path for hardening errors
func SecurityFailure() {
	log.Fatalf("Security failure...")
}

//seam for exercising the walk-down against synthetic tunables
type tunable interface {
	Write(val string) error
	Read() (string, error)
}

type fileTunable string

func (t fileTunable) Write(val string) error {
	return os.WriteFile(string(t), []byte(val+"\n"), 0644)
}

func (t fileTunable) Read() (string, error) {
	data, err := os.ReadFile(string(t))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SetHighestAvailableOptionValue writes the greatest value in [min, max]
// that the file reads back, walking downward from max. Returns false iff no
// value in the range round-trips.
func SetHighestAvailableOptionValue(path string, min, max int) bool {
	return setHighest(fileTunable(path), path, min, max)
}

func setHighest(t tunable, path string, min, max int) bool {
	if _, err := t.Read(); err != nil {
		log.Logf("Cannot open for reading: %s", path)
		return false
	}
	current := max
	for current >= min {
		val := strconv.Itoa(current)
		// the kernel rejects out-of-range values on write; a failed or
		// silently-dropped write shows up as a readback mismatch
		if err := t.Write(val); err == nil {
			if rec, err := t.Read(); err == nil && rec == val {
				break
			}
		}
		current--
	}
	if current < min {
		log.Logf("Unable to set minimum option value %d in %s", min, path)
		return false
	}
	return true
}

// The per-architecture randomization ranges are data, not code; arm64
// supports 18-33 bits depending on page size and VA size, x86_64 28-32,
// 32-bit architectures exactly 16.
type rndRange struct {
	path       string
	start, min int
}

// mmapRndRanges resolves the ranges for arch. ok=false means the
// architecture is unknown; an empty list with ok=true means nothing to set.
// On 32-bit architectures the compat path exists iff the kernel is 64-bit,
// and is then the one that governs 32-bit processes.
func mmapRndRanges(arch string, exists func(path string) bool) (ranges []rndRange, ok bool) {
	switch arch {
	case "arm64":
		return []rndRange{
			{MmapRndPath, 33, 24},
			{MmapRndCompatPath, 16, 16},
		}, true
	case "amd64":
		return []rndRange{
			{MmapRndPath, 32, 32},
			{MmapRndCompatPath, 16, 16},
		}, true
	case "arm", "386":
		path := MmapRndPath
		if exists(MmapRndCompatPath) {
			path = MmapRndCompatPath
		}
		return []rndRange{{path, 16, 16}}, true
	case "mips", "mipsle", "mips64", "mips64le":
		//no kernel support yet
		return nil, true
	}
	return nil, false
}

// SetMmapRndBits drives the mmap randomization tunables to their strongest
// accepted values. Builtin action; never returns non-fatally below the
// minimum.
func SetMmapRndBits(args []string) int {
	ranges, ok := mmapRndRanges(runtime.GOARCH, func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	})
	if !ok {
		log.Logf("Unknown architecture %s", runtime.GOARCH)
		SecurityFailure()
		return -1
	}
	for _, r := range ranges {
		if !SetHighestAvailableOptionValue(r.path, r.min, r.start) {
			log.Logf("Unable to set adequate mmap entropy value!")
			SecurityFailure()
			return -1
		}
	}
	return 0
}

//SetKptrRestrict drives kptr_restrict to the highest available level.
func SetKptrRestrict(args []string) int {
	if !SetHighestAvailableOptionValue(KptrRestrictPath, kptrRestrictMin, kptrRestrictMax) {
		log.Logf("Unable to set adequate kptr_restrict value!")
		SecurityFailure()
		return -1
	}
	return 0
}
