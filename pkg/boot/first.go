// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package boot

import (
	"os"
	"strconv"

	"github.com/purecloudlabs/ginit/pkg/earlymount"
	"github.com/purecloudlabs/ginit/pkg/log"

	"github.com/u-root/u-root/pkg/mount"
	"golang.org/x/sys/unix"
)

//supplemental group allowed to read /proc with hidepid=2
const readprocGID = 3009

type emount struct {
	fstype, dev, path, data string
	flags                   uintptr
}

//the minimal tree the initramfs needs before anything else can run
var emounts = []emount{
	{fstype: "tmpfs", dev: "tmpfs", path: "/dev", data: "mode=0755", flags: unix.MS_NOSUID},
	{fstype: "devpts", dev: "devpts", path: "/dev/pts"},
	{fstype: "proc", dev: "proc", path: "/proc", data: "hidepid=2,gid=" + strconv.Itoa(readprocGID)},
	{fstype: "sysfs", dev: "sysfs", path: "/sys"},
	{fstype: "selinuxfs", dev: "selinuxfs", path: "/sys/fs/selinux"},
}

type enode struct {
	path         string
	mode         uint32
	major, minor uint32
}

var enodes = []enode{
	{"/dev/kmsg", 0600 | unix.S_IFCHR, 1, 11},
	{"/dev/random", 0666 | unix.S_IFCHR, 1, 8},
	{"/dev/urandom", 0666 | unix.S_IFCHR, 1, 9},
}

// FirstStage assembles the minimal filesystem tree, runs early mount, loads
// policy, and re-executes this binary into the post-policy domain. Does not
// return: success ends in exec, failure in a panic reboot.
func FirstStage(w *World) {
	startMS := bootTimeMS()

	// clear the umask
	unix.Umask(0)

	earlyMounts()

	// don't expose the raw commandline to unprivileged processes
	if err := os.Chmod("/proc/cmdline", 0440); err != nil {
		log.Logf("restricting /proc/cmdline: %s", err)
	}
	if err := unix.Setgroups([]int{readprocGID}); err != nil {
		log.Logf("setgroups: %s", err)
	}

	// now that tmpfs is mounted on /dev and we have /dev/kmsg, we can
	// actually talk to the outside world
	InitKernelLogging()
	log.Logf("init first stage started!")

	em := earlymount.New(w.Fstab, w.Coldboot, w.Verity)
	if err := em.Run(); err != nil {
		log.Fatalf("Failed to mount required partitions early: %s", err)
	}

	// set up SELinux, loading the SELinux policy
	w.Selinux.Env = w.Env.Strings()
	if err := w.Selinux.Initialize(true); err != nil {
		log.Fatalf("SELinux setup: %s", err)
	}

	// we're in the kernel domain, so re-exec to transition to the init
	// domain now that the policy is loaded
	if err := w.Selinux.Restore(os.Args[0]); err != nil {
		log.Fatalf("restorecon %s: %s", os.Args[0], err)
	}

	os.Setenv(EnvSecondStage, "true")
	os.Setenv(EnvStartedAt, strconv.FormatInt(startMS, 10))

	path := os.Args[0]
	err := unix.Exec(path, []string{path}, os.Environ())
	// exec only returns on error
	log.Fatalf("execv(%q) failed: %s", path, err)
}

// Mount points are created as we go: /dev/pts only exists once the tmpfs is
// mounted over /dev, /sys/fs/selinux only once sysfs is up.
func earlyMounts() {
	for _, m := range emounts {
		if err := os.MkdirAll(m.path, 0755); err != nil {
			log.Logf("creating %s: %s", m.path, err)
		}
		if _, err := mount.Mount(m.dev, m.path, m.fstype, m.data, m.flags); err != nil {
			log.Logf("error %s mounting %s", err, m.path)
		}
	}
	if err := os.MkdirAll("/dev/socket", 0755); err != nil {
		log.Logf("creating /dev/socket: %s", err)
	}
	for _, n := range enodes {
		if err := unix.Mknod(n.path, n.mode, int(unix.Mkdev(n.major, n.minor))); err != nil && !os.IsExist(err) {
			log.Logf("mknod %s: %s", n.path, err)
		}
	}
}
