// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

//Package power reboots, powers off, or panics the unit to the bootloader.
package power

import (
	"os"
	"strings"
	"unsafe"

	"github.com/purecloudlabs/ginit/pkg/log"

	"golang.org/x/sys/unix"
)

//guard against rebooting the dev machine when a fatal path runs under `go test`
func underTest() bool {
	return strings.HasSuffix(os.Args[0], ".test") || strings.HasSuffix(os.Args[0], "test")
}

//Reboot the unit.
func Reboot() {
	if underTest() {
		panic("reboot called from test")
	}
	unix.Sync()
	err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
	if err != nil {
		log.Logf("reboot: %s", err)
	}
}

//Power the unit off.
func Off() {
	if underTest() {
		panic("poweroff called from test")
	}
	unix.Sync()
	err := unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF)
	if err != nil {
		log.Logf("poweroff: %s", err)
	}
}

// PanicReboot is the single fatal exit path: it requests that the bootloader
// stay in its recovery/fastboot mode rather than re-entering the OS, so a
// wedged unit does not boot-loop. Intended for use as a log.FailAction
// Terminator.
func PanicReboot() {
	if underTest() {
		panic("panic reboot called from test")
	}
	unix.Sync()
	if err := rebootBootloader(); err != nil {
		log.Logf("reboot to bootloader: %s", err)
		//fall back to a plain reboot rather than hang
		_ = unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
	}
}

//LINUX_REBOOT_CMD_RESTART2 with an argument the bootloader understands
func rebootBootloader() error {
	arg, err := unix.BytePtrFromString("bootloader")
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall6(unix.SYS_REBOOT,
		unix.LINUX_REBOOT_MAGIC1, unix.LINUX_REBOOT_MAGIC2,
		unix.LINUX_REBOOT_CMD_RESTART2, uintptr(unsafe.Pointer(arg)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
