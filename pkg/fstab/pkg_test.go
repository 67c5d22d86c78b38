// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package fstab_test

import (
	"testing"

	"github.com/purecloudlabs/ginit/pkg/fstab"
)

func TestEntryForMountPoint(t *testing.T) {
	recs := []*fstab.Record{
		{MountPoint: "/system", BlkDevice: "/dev/block/sda2"},
		{MountPoint: "/vendor", BlkDevice: "/dev/block/sda3"},
		{MountPoint: "/vendor", BlkDevice: "/dev/block/sdb3"}, //first wins
	}
	if got := fstab.EntryForMountPoint(recs, "/vendor"); got == nil || got.BlkDevice != "/dev/block/sda3" {
		t.Errorf("got %+v", got)
	}
	if got := fstab.EntryForMountPoint(recs, "/odm"); got != nil {
		t.Errorf("missing mount point matched %+v", got)
	}
}

func TestFlags(t *testing.T) {
	r := &fstab.Record{Flags: fstab.FlagVerify}
	if !r.Verified() || r.VerifyAtBoot() {
		t.Error("flag predicates wrong")
	}
	r.Flags |= fstab.FlagVerifyAtBoot
	if !r.VerifyAtBoot() {
		t.Error("verify-at-boot not seen")
	}
}
