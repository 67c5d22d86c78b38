// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package kenv imports kernel-supplied configuration - the command line and
// the device tree - into the property store. Malformed input is skipped,
// never fatal: the kernel gave us what it gave us.
package kenv

import (
	"os"
	fp "path/filepath"
	"strings"

	"github.com/purecloudlabs/ginit/pkg/log"
	"github.com/purecloudlabs/ginit/pkg/props"
)

const (
	DefaultCmdlinePath = "/proc/cmdline"
	DefaultDTDir       = "/proc/device-tree/firmware/android"

	//value of the compatible node that marks the DT dir as ours
	dtCompatible = "android,firmware"
)

type Importer struct {
	Props       *props.Store
	CmdlinePath string
	DTDir       string

	emulator bool
}

func New(s *props.Store) *Importer {
	return &Importer{
		Props:       s,
		CmdlinePath: DefaultCmdlinePath,
		DTDir:       DefaultDTDir,
	}
}

//true once a qemu= key has been seen on the command line
func (im *Importer) Emulator() bool { return im.emulator }

// ImportCmdline splits the kernel command line into key=value pairs and feeds
// each through fn. Keys without '=' are skipped.
func (im *Importer) ImportCmdline(forEmulator bool, fn func(key, value string, forEmulator bool)) {
	data, err := os.ReadFile(im.CmdlinePath)
	if err != nil {
		log.Logf("reading %s: %s", im.CmdlinePath, err)
		return
	}
	for _, entry := range strings.Fields(string(data)) {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		fn(key, value, forEmulator)
	}
}

// ProcessKernelCmdline imports the command line. The first pass does the
// common stuff, and finds if we are in qemu. The second pass is only
// necessary for qemu to export all kernel params as properties.
func (im *Importer) ProcessKernelCmdline() {
	im.ImportCmdline(false, im.importKernelNV)
	if im.emulator {
		im.ImportCmdline(true, im.importKernelNV)
	}
}

func (im *Importer) importKernelNV(key, value string, forEmulator bool) {
	if key == "" {
		return
	}
	if forEmulator {
		// In the emulator, export any kernel option with the "ro.kernel." prefix.
		if err := im.Props.Set("ro.kernel."+key, value); err != nil {
			log.Logf("importing %s: %s", key, err)
		}
		return
	}
	if key == "qemu" {
		im.emulator = true
	} else if suffix, ok := strings.CutPrefix(key, "androidboot."); ok {
		if err := im.Props.Set("ro.boot."+suffix, value); err != nil {
			log.Logf("importing %s: %s", key, err)
		}
	}
}

//true if the device tree dir exists and carries our compatible marker
func (im *Importer) DTCompatible() bool {
	data, err := os.ReadFile(fp.Join(im.DTDir, "compatible"))
	if err != nil {
		return false
	}
	return firstString(data) == dtCompatible
}

// ProcessKernelDT imports firmware device-tree nodes as ro.boot.* properties.
// Runs before the command-line import; since ro.* properties are write-once,
// device-tree values take precedence over command-line ones.
func (im *Importer) ProcessKernelDT() {
	if !im.DTCompatible() {
		return
	}
	entries, err := os.ReadDir(im.DTDir)
	if err != nil {
		log.Logf("reading %s: %s", im.DTDir, err)
		return
	}
	for _, ent := range entries {
		if !ent.Type().IsRegular() || ent.Name() == "compatible" || ent.Name() == "name" {
			continue
		}
		data, err := os.ReadFile(fp.Join(im.DTDir, ent.Name()))
		if err != nil {
			log.Logf("reading dt node %s: %s", ent.Name(), err)
			continue
		}
		value := strings.ReplaceAll(firstString(data), ",", ".")
		if err := im.Props.Set("ro.boot."+ent.Name(), value); err != nil {
			log.Logf("importing dt node %s: %s", ent.Name(), err)
		}
	}
}

// SelinuxPermissiveRequested reports whether the command line asked for
// permissive mode.
func (im *Importer) SelinuxPermissiveRequested() bool {
	permissive := false
	im.ImportCmdline(false, func(key, value string, _ bool) {
		if key == "androidboot.selinux" && value == "permissive" {
			permissive = true
		}
	})
	return permissive
}

//content of a NUL-terminated blob; device tree values carry a trailing NUL
func firstString(data []byte) string {
	s := string(data)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return s
}
