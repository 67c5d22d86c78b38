// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package boot

import (
	"strconv"
	"time"

	"github.com/purecloudlabs/ginit/pkg/devmgr"
	"github.com/purecloudlabs/ginit/pkg/log"
	"github.com/purecloudlabs/ginit/pkg/supervisor"
)

//any build taking longer than this to coldboot isn't likely to boot at all
const coldbootTimeout = 60 * time.Second

// waitForColdbootDone blocks the queue until the device manager has finished
// populating /dev. The wait itself is only logged as a boot timing property;
// blowing the cap reboots to the bootloader, which beats hanging a test lab
// device forever.
func (w *World) waitForColdbootDone(args []string) int {
	t := supervisor.NewTimer()
	log.Vlogf("Waiting for %s...", devmgr.ColdbootDonePath)
	if !waitForFile(devmgr.ColdbootDonePath, coldbootTimeout) {
		log.Fatalf("Timed out waiting for %s", devmgr.ColdbootDonePath)
		return -1
	}
	setProp(w, "ro.boottime.init.cold_boot_wait", strconv.FormatInt(t.ElapsedMS(), 10))
	return 0
}

//the kernel may name a different console via ro.boot.console
func (w *World) consoleInit(args []string) int {
	if console := w.Props.Get("ro.boot.console"); console != "" {
		w.DefaultConsole = "/dev/" + console
	}
	return 0
}

//registers the keychord device with the loop, when that subsystem is linked
func (w *World) keychordInit(args []string) int {
	if w.KeychordInit == nil {
		return 0
	}
	if err := w.KeychordInit(w.Loop); err != nil {
		log.Logf("keychord init: %s", err)
	}
	return 0
}

// enablePropertyTriggers opens the latch: observations held in the property
// queue (and all future ones) may now fire their actions.
func (w *World) enablePropertyTriggers(args []string) int {
	w.Actions.EnableTriggers()
	return 0
}
