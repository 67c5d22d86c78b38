// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package kenv_test

import (
	"os"
	fp "path/filepath"
	"testing"

	"github.com/purecloudlabs/ginit/pkg/kenv"
	"github.com/purecloudlabs/ginit/pkg/log/testlog"
	"github.com/purecloudlabs/ginit/pkg/props"
)

func newImporter(t *testing.T, cmdline string) (*kenv.Importer, *props.Store) {
	t.Helper()
	s := props.New()
	s.Init()
	im := kenv.New(s)
	path := fp.Join(t.TempDir(), "cmdline")
	if err := os.WriteFile(path, []byte(cmdline), 0644); err != nil {
		t.Fatal(err)
	}
	im.CmdlinePath = path
	return im, s
}

func TestProcessKernelCmdline(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	im, s := newImporter(t,
		"androidboot.hardware=foo bar=baz qemu=1 androidboot.selinux=permissive\n")
	im.ProcessKernelCmdline()

	if got := s.Get("ro.boot.hardware"); got != "foo" {
		t.Errorf("ro.boot.hardware: got %q", got)
	}
	if got := s.Get("ro.boot.selinux"); got != "permissive" {
		t.Errorf("ro.boot.selinux: got %q", got)
	}
	if !im.Emulator() {
		t.Error("emulator mode not detected")
	}
	//second pass exports everything under ro.kernel.
	if got := s.Get("ro.kernel.bar"); got != "baz" {
		t.Errorf("ro.kernel.bar: got %q", got)
	}
	if got := s.Get("ro.kernel.qemu"); got != "1" {
		t.Errorf("ro.kernel.qemu: got %q", got)
	}

	if !im.SelinuxPermissiveRequested() {
		t.Error("permissive request not seen")
	}
}

func TestNoEmulatorSinglePass(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	im, s := newImporter(t, "androidboot.mode=charger bar=baz")
	im.ProcessKernelCmdline()

	if im.Emulator() {
		t.Error("emulator mode misdetected")
	}
	if got := s.Get("ro.kernel.bar"); got != "" {
		t.Errorf("ro.kernel.* without qemu: got %q", got)
	}
	if got := s.Get("ro.boot.mode"); got != "charger" {
		t.Errorf("ro.boot.mode: got %q", got)
	}
}

func writeDT(t *testing.T, dir string, nodes map[string]string) {
	t.Helper()
	for name, value := range nodes {
		if err := os.WriteFile(fp.Join(dir, name), []byte(value), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestProcessKernelDT(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	s := props.New()
	s.Init()
	im := kenv.New(s)
	im.DTDir = t.TempDir()
	writeDT(t, im.DTDir, map[string]string{
		"compatible": "android,firmware\x00",
		"name":       "android\x00",
		"serialno":   "XY,123\x00",
		"baseband":   "mdm\x00",
	})

	im.ProcessKernelDT()

	//commas become dots, trailing NUL goes away
	if got := s.Get("ro.boot.serialno"); got != "XY.123" {
		t.Errorf("ro.boot.serialno: got %q", got)
	}
	if got := s.Get("ro.boot.baseband"); got != "mdm" {
		t.Errorf("ro.boot.baseband: got %q", got)
	}
	//compatible and name are markers, not values
	if got := s.Get("ro.boot.compatible"); got != "" {
		t.Errorf("ro.boot.compatible leaked: %q", got)
	}
	if got := s.Get("ro.boot.name"); got != "" {
		t.Errorf("ro.boot.name leaked: %q", got)
	}
}

func TestDTIncompatibleSkipped(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	s := props.New()
	s.Init()
	im := kenv.New(s)
	im.DTDir = t.TempDir()
	writeDT(t, im.DTDir, map[string]string{
		"compatible": "vendor,other\x00",
		"serialno":   "XY123\x00",
	})

	im.ProcessKernelDT()
	if got := s.Get("ro.boot.serialno"); got != "" {
		t.Errorf("incompatible dt imported: %q", got)
	}
}

// Device tree runs first and ro.* is write-once, so the command line cannot
// override a device-tree value.
func TestDTPrecedence(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	im, s := newImporter(t, "androidboot.hardware=cmdline")
	im.DTDir = t.TempDir()
	writeDT(t, im.DTDir, map[string]string{
		"compatible": "android,firmware\x00",
		"hardware":   "devicetree\x00",
	})

	im.ProcessKernelDT()
	im.ProcessKernelCmdline()
	if got := s.Get("ro.boot.hardware"); got != "devicetree" {
		t.Errorf("precedence: got %q", got)
	}
}
