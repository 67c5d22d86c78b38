// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// The first user-space process. A multi-call binary: invoked as ueventd or
// watchdogd it transfers control to that subsystem; otherwise it boots the
// userland in two stages, re-executing itself between them once
// mandatory-access-control policy is loaded, and then supervises services
// forever.
package main

import (
	"os"
	fp "path/filepath"

	"github.com/purecloudlabs/ginit/pkg/boot"
	"github.com/purecloudlabs/ginit/pkg/devmgr"
)

// Build-flag equivalents; release images flip these at link time via
// -ldflags -X.
var (
	allowPermissiveSelinux  = "1"
	rebootBootloaderOnPanic = "1"
)

func main() {
	switch fp.Base(os.Args[0]) {
	case "ueventd":
		os.Exit(devmgr.UeventdMain(os.Args))
	case "watchdogd":
		os.Exit(devmgr.WatchdogdMain(os.Args))
	}

	if rebootBootloaderOnPanic == "1" {
		boot.InstallRebootSignalHandlers()
	}

	w := boot.NewWorld(allowPermissiveSelinux == "1")
	_ = w.Env.Add("PATH", boot.DefaultPath)

	if !boot.IsSecondStage() {
		boot.FirstStage(w)
		//FirstStage ends in exec or reboot
	}
	boot.SecondStage(w)
}
