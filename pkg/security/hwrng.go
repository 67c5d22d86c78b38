// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package security

import (
	"io"
	"os"

	"github.com/purecloudlabs/ginit/pkg/log"

	"golang.org/x/sys/unix"
)

//Paths are vars so tests can point the pump at ordinary files.
var (
	HwRandomPath = "/dev/hw_random"
	UrandomPath  = "/dev/urandom"
)

//how much hardware entropy gets stirred in; best effort, and bytes written
//before a failure stay written
const hwrngBytes = 512

// MixHwrngIntoLinuxRng pumps exactly 512 bytes from the hardware RNG into
// the kernel RNG. The hardware RNG's quality is not yet trusted, so the
// bytes go in without crediting the entropy estimate. Absence of the device
// is not an error; any I/O failure mid-pump aborts with a log line and no
// reboot. Builtin action.
func MixHwrngIntoLinuxRng(args []string) int {
	hwf, err := os.OpenFile(HwRandomPath, os.O_RDONLY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		if os.IsNotExist(err) {
			log.Logf("%s not found", HwRandomPath)
			// it's not an error to not have a hardware RNG
			return 0
		}
		log.Logf("opening %s: %s", HwRandomPath, err)
		return -1
	}
	defer hwf.Close()

	urf, err := os.OpenFile(UrandomPath, os.O_WRONLY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		log.Logf("opening %s: %s", UrandomPath, err)
		return -1
	}
	defer urf.Close()

	buf := make([]byte, hwrngBytes)
	written := 0
	for written < hwrngBytes {
		n, err := hwf.Read(buf[:hwrngBytes-written])
		if err == io.EOF || (err == nil && n == 0) {
			log.Logf("reading %s: EOF", HwRandomPath)
			return -1
		}
		if err != nil {
			log.Logf("reading %s: %s", HwRandomPath, err)
			return -1
		}
		if _, err := urf.Write(buf[:n]); err != nil {
			log.Logf("writing %s: %s", UrandomPath, err)
			return -1
		}
		written += n
	}
	log.Logf("Mixed %d bytes from %s into %s", written, HwRandomPath, UrandomPath)
	return 0
}
