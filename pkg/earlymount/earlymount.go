// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package earlymount brings up the odm/system/vendor partitions before the
// boot scripts run, from an fstab supplied by the device tree. Block device
// nodes do not exist yet this early; they are materialized by replaying
// kernel add events through the device manager (coldboot), including the
// dm-N nodes published by verity setup.
package earlymount

import (
	"fmt"
	"os"
	fp "path/filepath"
	"sort"
	"strings"

	"github.com/purecloudlabs/ginit/pkg/devmgr"
	"github.com/purecloudlabs/ginit/pkg/fstab"
	"github.com/purecloudlabs/ginit/pkg/log"

	"github.com/u-root/u-root/pkg/mount"
)

//mount points eligible for early mount
var earlyMountPoints = []string{"/odm", "/system", "/vendor"}

// Rewrites rec.BlkDevice to the dm-N node it created. Implemented by the
// attested-boot library.
type VerityFunc func(rec *fstab.Record) error

type Engine struct {
	Reader      fstab.ReaderDT
	Dev         devmgr.Coldbooter
	SetupVerity VerityFunc

	//mounts one record; test seam, defaults to mountOne
	MountFn func(rec *fstab.Record) error
	//presence of this path means a recovery boot, which mounts nothing early
	RecoveryPath string
}

func New(rd fstab.ReaderDT, dev devmgr.Coldbooter, verity VerityFunc) *Engine {
	return &Engine{
		Reader:       rd,
		Dev:          dev,
		SetupVerity:  verity,
		MountFn:      mountOne,
		RecoveryPath: "/sbin/recovery",
	}
}

// Run performs early mount. A nil return with nothing mounted is normal
// (recovery boot, or no device-tree fstab). On error, already-mounted
// filesystems stay mounted; the caller reboots.
func (e *Engine) Run() error {
	if _, err := os.Stat(e.RecoveryPath); err == nil {
		log.Logf("early mount skipped (recovery mode, %s exists)", e.RecoveryPath)
		return nil
	}
	if !e.Reader.Compatible() {
		log.Logf("early mount skipped (missing/incompatible fstab in device tree)")
		return nil
	}

	recs, err := e.Reader.Read()
	if err != nil {
		return fmt.Errorf("early mount: reading fstab from device tree: %w", err)
	}

	// rows keep the order the reader returned them in; the first row for
	// each eligible mount point wins
	var selection []*fstab.Record
	for _, rec := range recs {
		for _, mp := range earlyMountPoints {
			if rec.MountPoint == mp && fstab.EntryForMountPoint(selection, mp) == nil {
				selection = append(selection, rec)
			}
		}
	}
	if len(selection) == 0 {
		return nil
	}

	partitions, needVerity, err := Partitions(selection)
	if err != nil {
		return err
	}

	defer e.Dev.Release()

	e.deviceInit(partitions)
	if len(partitions) != 0 {
		return fmt.Errorf("early mount: partition(s) not found: %s",
			strings.Join(sortedNames(partitions), ", "))
	}

	if needVerity {
		//create /dev/device-mapper
		e.Dev.Init(devmgr.DMControlSysPath, func(*devmgr.Uevent) devmgr.Action {
			return devmgr.Stop
		})
	}

	for _, rec := range selection {
		if err := e.earlyMountOne(rec); err != nil {
			return err
		}
	}
	return nil
}

// Partitions derives the set of partition names coldboot must resolve: the
// basename of each record's block device, plus the basename of the verity
// metadata partition if any record declares one. Verity state is not
// partition specific, so at most one metadata partition may exist across the
// selection; verify-at-boot records are rejected outright.
func Partitions(recs []*fstab.Record) (map[string]bool, bool, error) {
	var metaPartition string
	needVerity := false
	for _, rec := range recs {
		if rec.VerifyAtBoot() {
			return nil, false, fmt.Errorf("early mount: partitions can't be verified at boot (%s)", rec.MountPoint)
		}
		if rec.Verified() {
			needVerity = true
		}
		if rec.VerityLoc != "" {
			name := fp.Base(rec.VerityLoc)
			if metaPartition != "" {
				return nil, false, fmt.Errorf("early mount: more than one meta partition found: %s, %s",
					metaPartition, name)
			}
			metaPartition = name
		}
	}

	partitions := make(map[string]bool)
	for _, rec := range recs {
		partitions[fp.Base(rec.BlkDevice)] = true
	}
	if metaPartition != "" {
		partitions[metaPartition] = true
	}
	return partitions, needVerity, nil
}

// Creates device nodes for the named partitions, removing each from the set
// as its uevent is seen. Platform devices are created too - symlink creation
// needs them.
func (e *Engine) deviceInit(partitions map[string]bool) {
	if len(partitions) == 0 {
		return
	}
	e.Dev.Init("", func(ev *devmgr.Uevent) devmgr.Action {
		if ev.Subsystem == "firmware" {
			return devmgr.Continue
		}
		if ev.Subsystem == "platform" {
			return devmgr.Create
		}
		if ev.Subsystem != "block" {
			return devmgr.Continue
		}
		if ev.PartitionName != "" && partitions[ev.PartitionName] {
			log.Vlogf("early mount: found partition %s", ev.PartitionName)
			delete(partitions, ev.PartitionName)
			if len(partitions) == 0 {
				return devmgr.Stop
			}
			return devmgr.Create
		}
		return devmgr.Continue
	})
}

func (e *Engine) earlyMountOne(rec *fstab.Record) error {
	if rec.Verified() {
		// setup verity and create the dm-N block device needed to mount
		// this partition
		if err := e.SetupVerity(rec); err != nil {
			return fmt.Errorf("early mount: setting up verity for %s: %w", rec.MountPoint, err)
		}
		// SetupVerity left the exact device name in rec.BlkDevice as
		// /dev/block/dm-N; create that node by coldbooting /sys/block/dm-N
		dmDevice := fp.Base(rec.BlkDevice)
		e.Dev.Init("/sys/block/"+dmDevice, func(ev *devmgr.Uevent) devmgr.Action {
			if ev.DeviceName == dmDevice {
				log.Vlogf("early mount: creating verity device %s", dmDevice)
				return devmgr.Stop
			}
			return devmgr.Continue
		})
	}
	if err := e.MountFn(rec); err != nil {
		return fmt.Errorf("early mount: mounting %s: %w", rec.MountPoint, err)
	}
	return nil
}

func mountOne(rec *fstab.Record) error {
	_, err := mount.Mount(rec.BlkDevice, rec.MountPoint, rec.FsType, rec.FsOptions, rec.MountFlags)
	return err
}

func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
