// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package boot

import (
	"os"

	"github.com/purecloudlabs/ginit/pkg/log"
	"github.com/purecloudlabs/ginit/pkg/props"
	"github.com/purecloudlabs/ginit/pkg/security"
	"github.com/purecloudlabs/ginit/pkg/service"
	"github.com/purecloudlabs/ginit/pkg/supervisor"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

//attested-boot library major version, published for update matching
const avbMajorVersion = "1"

// Directories were created before the initial policy load and need their
// security context restored. Must happen before /dev is populated by the
// device manager.
var restoreconPaths = []string{
	"/dev", "/dev/kmsg", "/dev/socket", "/dev/random", "/dev/urandom",
	"/dev/__properties__", "/plat_property_contexts", "/nonplat_property_contexts",
}
var restoreconRecursePaths = []string{"/sys", "/dev/block"}

//boot scripts parsed when the kernel doesn't name one via ro.boot.init_rc
var defaultBootScripts = []string{
	"/init.rc", "/system/etc/init", "/vendor/etc/init", "/odm/etc/init",
}

// SecondStage runs in the post-policy domain: it rebuilds process state from
// kernel inputs, brings up the property and signal plumbing, loads the boot
// scripts, seeds the event queue, and enters the supervisor loop. Never
// returns.
func SecondStage(w *World) {
	InitKernelLogging()
	log.Logf("init second stage started!")

	// indicate that booting is in progress to background fw loaders, etc.
	if f, err := os.OpenFile("/dev/.booting", os.O_WRONLY|os.O_CREATE|unix.O_CLOEXEC, 0000); err == nil {
		f.Close()
	}

	w.Props.Init()

	// ro.* properties are write-once, so device-tree values processed here
	// take priority over command-line ones
	w.Kenv.ProcessKernelDT()
	w.Kenv.ProcessKernelCmdline()

	// propagate the kernel variables to the canonical properties
	props.ExportKernelBootProps(w.Props)

	// make the time that init started available for boot timing
	setProp(w, "ro.boottime.init", os.Getenv(EnvStartedAt))
	setProp(w, "ro.boottime.init.selinux", os.Getenv(EnvSelinuxTook))
	setProp(w, "ro.boot.init.avb_version", avbMajorVersion)
	props.ExportBootID(w.Props)

	// clean up our environment
	os.Unsetenv(EnvSecondStage)
	os.Unsetenv(EnvStartedAt)
	os.Unsetenv(EnvSelinuxTook)

	// now set up SELinux for second stage: label handles only
	if err := w.Selinux.Initialize(false); err != nil {
		log.Fatalf("loading file contexts: %s", err)
	}
	log.Logf("Running restorecon...")
	for _, p := range restoreconPaths {
		if err := w.Selinux.Restore(p); err != nil {
			log.Logf("restorecon %s: %s", p, err)
		}
	}
	for _, p := range restoreconRecursePaths {
		if err := w.Selinux.RestoreRecursive(p); err != nil {
			log.Logf("restorecon -R %s: %s", p, err)
		}
	}
	if err := w.Selinux.Restore("/dev/device-mapper"); err != nil {
		log.Logf("restorecon /dev/device-mapper: %s", err)
	}

	loop, err := supervisor.NewLoop(w.Props, w.Actions)
	if err != nil {
		log.Fatalf("creating event loop: %s", err)
	}
	w.Loop = loop

	if err := service.StartSignalHandling(loop, w.Services); err != nil {
		log.Fatalf("starting signal handling: %s", err)
	}

	props.LoadBootDefaults(w.Props, props.BootDefaultsPath)
	props.ExportOemLockStatus(w.Props)

	w.Props.OnControl(w.Services.HandleControlMessage)
	if _, err := props.StartService(w.Props, loop); err != nil {
		log.Fatalf("starting property service: %s", err)
	}

	setUsbController(w)
	upLoopback()

	loadBootScripts(w)
	queueBootSequence(w)

	loop.Run(w.Services)
}

func setProp(w *World, name, value string) {
	if err := w.Props.Set(name, value); err != nil {
		log.Logf("setting %s: %s", name, err)
	}
}

func loadBootScripts(w *World) {
	if w.Parser == nil {
		log.Logf("no boot script parser linked; skipping scripts")
		return
	}
	for _, h := range w.SectionHandlers {
		w.Parser.AddSectionParser(h)
	}
	// a kernel-named script replaces the defaults entirely
	if bootscript := w.Props.Get("ro.boot.init_rc"); bootscript != "" {
		w.Parser.ParseConfig(bootscript)
		return
	}
	for _, path := range defaultBootScripts {
		w.Parser.ParseConfig(path)
	}
}

// The fixed boot event sequence. Actions needing /dev wait behind the
// coldboot-done builtin; the entropy mix repeats in case /dev/hw_random
// wasn't ready immediately after it.
func queueBootSequence(w *World) {
	am := w.Actions

	am.QueueEventTrigger("early-init")

	am.QueueBuiltinAction(w.waitForColdbootDone, "wait_for_coldboot_done")
	am.QueueBuiltinAction(security.MixHwrngIntoLinuxRng, "mix_hwrng_into_linux_rng")
	am.QueueBuiltinAction(security.SetMmapRndBits, "set_mmap_rnd_bits")
	am.QueueBuiltinAction(security.SetKptrRestrict, "set_kptr_restrict")
	am.QueueBuiltinAction(w.keychordInit, "keychord_init")
	am.QueueBuiltinAction(w.consoleInit, "console_init")

	am.QueueEventTrigger("init")

	am.QueueBuiltinAction(security.MixHwrngIntoLinuxRng, "mix_hwrng_into_linux_rng")

	// don't mount filesystems or start core system services in charger mode
	if w.Props.Get("ro.bootmode") == "charger" {
		am.QueueEventTrigger("charger")
	} else {
		am.QueueEventTrigger("late-init")
	}

	am.QueueBuiltinAction(w.enablePropertyTriggers, "queue_property_triggers")
}

// Select the UDC controller for ConfigFS USB gadgets: the first entry under
// /sys/class/udc.
func setUsbController(w *World) {
	entries, err := os.ReadDir("/sys/class/udc")
	if err != nil {
		return
	}
	for _, ent := range entries {
		if ent.Name()[0] == '.' {
			continue
		}
		setProp(w, "sys.usb.controller", ent.Name())
		break
	}
}

//children expect a working loopback before any networking service starts
func upLoopback() {
	lo, err := netlink.LinkByName("lo")
	if err != nil {
		log.Logf("loopback: %s", err)
		return
	}
	if err := netlink.LinkSetUp(lo); err != nil {
		log.Logf("bringing up loopback: %s", err)
	}
}
