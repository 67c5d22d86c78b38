// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package boot

import (
	"os"
	"os/signal"
	"time"

	"github.com/purecloudlabs/ginit/pkg/log"
	"github.com/purecloudlabs/ginit/pkg/power"

	"golang.org/x/sys/unix"
)

// Environment sentinels crossing the re-exec into the second stage. All are
// cleared once the second stage has read them.
const (
	EnvSecondStage = "INIT_SECOND_STAGE"
	EnvStartedAt   = "INIT_STARTED_AT"
	EnvSelinuxTook = "INIT_SELINUX_TOOK"
)

//true once the first stage has re-executed us
func IsSecondStage() bool { return os.Getenv(EnvSecondStage) != "" }

// InitKernelLogging points the log stack at /dev/kmsg; everything buffered
// since process start replays into the kernel log. Falls back to the console
// when the device can't be opened (not PID 1, tests, broken /dev).
func InitKernelLogging() {
	log.SetPrefix("init")
	if err := log.AddKmsgLog(log.GetPrefix(), false); err != nil {
		log.AddConsoleLog(0)
		log.Logf("kernel logging unavailable: %s", err)
	}
	log.AdaptStdlog(nil, 0, true) //u-root uses the std log pkg
	log.SetFatalAction(log.FailAction{Terminator: power.PanicReboot})
}

// InstallRebootSignalHandlers turns crash signals into a panic reboot.
// Instead of panic'ing the kernel as is the default behavior when init
// crashes, development builds reboot to the bootloader, which prevents boot
// looping bad configurations and lets test farms recover.
func InstallRebootSignalHandlers() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch,
		unix.SIGABRT, unix.SIGBUS, unix.SIGFPE, unix.SIGILL,
		unix.SIGSEGV, unix.SIGSTKFLT, unix.SIGSYS, unix.SIGTRAP)
	go func() {
		sig := <-ch
		log.Fatalf("fatal signal %s", sig)
	}()
}

//milliseconds since the kernel booted, the clock boot timing props use
func bootTimeMS() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		return 0
	}
	return int64(ts.Sec)*1000 + int64(ts.Nsec)/1e6
}

//polls for path; false once timeout elapses
func waitForFile(path string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(path); err == nil {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}
