// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package devmgr defines the contract between the boot core and the hot-plug
// device manager. The manager itself (uevent parsing, node creation, firmware
// loading) is a separate subsystem reached through the multi-call binary; the
// core only drives coldboot replays through the Coldbooter interface and
// waits on the coldboot-done sentinel.
package devmgr

import (
	"os"

	"github.com/purecloudlabs/ginit/pkg/log"
)

// What a coldboot visitor wants done with the device a uevent describes.
type Action int

const (
	//skip this device, keep scanning
	Continue Action = iota
	//create the device node, keep scanning
	Create
	//create the device node, then end the coldboot pass
	Stop
)

// The subset of a kernel uevent the boot core cares about.
type Uevent struct {
	Subsystem     string
	PartitionName string
	DeviceName    string
}

type Visitor func(*Uevent) Action

// Coldbooter replays kernel add events under a sysfs subtree, consulting the
// visitor for each. An empty sysPath means the default device scan roots.
type Coldbooter interface {
	Init(sysPath string, v Visitor)
	Release()
}

const (
	//sentinel created by the device manager once the initial coldboot completes
	ColdbootDonePath = "/dev/.coldboot_done"
	//sysfs node of the device-mapper control device
	DMControlSysPath = "/sys/devices/virtual/misc/device-mapper"
)

// Entry points for the subsystems multiplexed into this binary. The real
// implementations register themselves at link time; the defaults make a
// misconfigured image obvious instead of silently exiting.
var (
	UeventdMain   = func(args []string) int { return unlinked("ueventd") }
	WatchdogdMain = func(args []string) int { return unlinked("watchdogd") }
)

func unlinked(name string) int {
	log.Logf("%s requested but not linked into this binary", name)
	os.Exit(1)
	return 1
}
