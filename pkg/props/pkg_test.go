// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package props_test

import (
	"os"
	fp "path/filepath"
	"strings"
	"testing"

	"github.com/purecloudlabs/ginit/pkg/log/testlog"
	"github.com/purecloudlabs/ginit/pkg/props"
)

func TestSetGet(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	s := props.New()

	if err := s.Set("sys.boot_completed", "1"); err == nil {
		t.Error("set before Init must fail")
	}
	s.Init()
	if err := s.Set("sys.boot_completed", "1"); err != nil {
		t.Error(err)
	}
	if got := s.Get("sys.boot_completed"); got != "1" {
		t.Errorf("got %q", got)
	}
	if got := s.Get("no.such.prop"); got != "" {
		t.Errorf("unset prop: got %q", got)
	}
}

func TestReadonlyOnce(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	s := props.New()
	s.Init()

	if err := s.Set("ro.boot.hardware", "foo"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("ro.boot.hardware", "bar"); err == nil {
		t.Error("ro.* must be write-once")
	}
	if got := s.Get("ro.boot.hardware"); got != "foo" {
		t.Errorf("got %q", got)
	}
	//non-ro properties overwrite freely
	if err := s.Set("sys.usb.config", "adb"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("sys.usb.config", "mtp"); err != nil {
		t.Fatal(err)
	}
	if got := s.Get("sys.usb.config"); got != "mtp" {
		t.Errorf("got %q", got)
	}
}

func TestValueTooLong(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	s := props.New()
	s.Init()
	if err := s.Set("sys.too.long", strings.Repeat("x", props.ValueMax)); err == nil {
		t.Error("oversize value must be rejected")
	}
}

func TestObserver(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	s := props.New()
	s.Init()

	var seen []string
	s.OnChange(func(name, value string) { seen = append(seen, name+"="+value) })
	if err := s.Set("sys.a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("sys.b", "2"); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != "sys.a=1" || seen[1] != "sys.b=2" {
		t.Errorf("observations: %v", seen)
	}
}

func TestControlRouting(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	s := props.New()
	s.Init()

	var gotMsg, gotName string
	s.OnControl(func(msg, name string) { gotMsg, gotName = msg, name })
	if err := s.Set("ctl.start", "netd"); err != nil {
		t.Fatal(err)
	}
	if gotMsg != "start" || gotName != "netd" {
		t.Errorf("control: %q %q", gotMsg, gotName)
	}
	//control writes are not stored
	if got := s.Get("ctl.start"); got != "" {
		t.Errorf("ctl.* stored: %q", got)
	}
}

func TestExportKernelBootProps(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	s := props.New()
	s.Init()

	if err := s.Set("ro.boot.hardware", "sailfish"); err != nil {
		t.Fatal(err)
	}
	props.ExportKernelBootProps(s)

	for _, td := range []struct{ name, want string }{
		{"ro.hardware", "sailfish"},
		{"ro.serialno", ""},
		{"ro.bootmode", "unknown"},
		{"ro.baseband", "unknown"},
		{"ro.bootloader", "unknown"},
		{"ro.revision", "0"},
	} {
		if got := s.Get(td.name); got != td.want {
			t.Errorf("%s: want %q got %q", td.name, td.want, got)
		}
	}
}

func TestExportOemLockStatus(t *testing.T) {
	for _, td := range []struct {
		supported, state, want string
	}{
		{"1", "orange", "0"},
		{"1", "green", "1"},
		{"1", "yellow", "1"},
		{"1", "", ""},
		{"0", "orange", ""},
		{"", "green", ""},
	} {
		tlog := testlog.NewTestLog(t, true, false)
		s := props.New()
		s.Init()
		if td.supported != "" {
			if err := s.Set("ro.oem_unlock_supported", td.supported); err != nil {
				t.Fatal(err)
			}
		}
		if td.state != "" {
			if err := s.Set("ro.boot.verifiedbootstate", td.state); err != nil {
				t.Fatal(err)
			}
		}
		props.ExportOemLockStatus(s)
		if got := s.Get("ro.boot.flash.locked"); got != td.want {
			t.Errorf("supported=%q state=%q: want %q got %q", td.supported, td.state, td.want, got)
		}
		tlog.Freeze()
	}
}

func TestLoadBootDefaults(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()
	s := props.New()
	s.Init()

	path := fp.Join(t.TempDir(), "default.prop")
	content := "# defaults\n" +
		"persist.sys.usb.config=adb\n" +
		"dalvik.vm.heapsize = 512m\n" +
		"malformed line\n" +
		"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	props.LoadBootDefaults(s, path)
	if got := s.Get("persist.sys.usb.config"); got != "adb" {
		t.Errorf("got %q", got)
	}
	if got := s.Get("dalvik.vm.heapsize"); got != "512m" {
		t.Errorf("whitespace handling: got %q", got)
	}
	//missing file is fine
	props.LoadBootDefaults(s, fp.Join(t.TempDir(), "nonexistent"))
}

func TestLegalName(t *testing.T) {
	for _, td := range []struct {
		name string
		want bool
	}{
		{"ro.boot.hardware", true},
		{"sys.usb.controller", true},
		{"a", true},
		{"", false},
		{".leading", false},
		{"trailing.", false},
		{"double..dot", false},
		{"spaces bad", false},
		{strings.Repeat("a", 32), false},
	} {
		if got := props.LegalName(td.name); got != td.want {
			t.Errorf("%q: want %v got %v", td.name, td.want, got)
		}
	}
}
