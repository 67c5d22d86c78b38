// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package props

import (
	"github.com/purecloudlabs/ginit/pkg/log"

	"github.com/google/uuid"
)

// ExportKernelBootProps promotes kernel-supplied ro.boot.* values to their
// canonical aliases, applying per-property defaults where the kernel supplied
// nothing.
func ExportKernelBootProps(s *Store) {
	propMap := []struct {
		src, dst, def string
	}{
		{"ro.boot.serialno", "ro.serialno", ""},
		{"ro.boot.mode", "ro.bootmode", "unknown"},
		{"ro.boot.baseband", "ro.baseband", "unknown"},
		{"ro.boot.bootloader", "ro.bootloader", "unknown"},
		{"ro.boot.hardware", "ro.hardware", "unknown"},
		{"ro.boot.revision", "ro.revision", "0"},
	}
	for _, pm := range propMap {
		value := s.Get(pm.src)
		if value == "" {
			value = pm.def
		}
		if err := s.Set(pm.dst, value); err != nil {
			log.Logf("exporting %s: %s", pm.dst, err)
		}
	}
}

// ExportOemLockStatus publishes ro.boot.flash.locked from the verified boot
// state, on units that support OEM unlocking. "orange" is the unlocked state.
func ExportOemLockStatus(s *Store) {
	if s.Get("ro.oem_unlock_supported") != "1" {
		return
	}
	value := s.Get("ro.boot.verifiedbootstate")
	if value == "" {
		return
	}
	locked := "1"
	if value == "orange" {
		locked = "0"
	}
	if err := s.Set("ro.boot.flash.locked", locked); err != nil {
		log.Logf("exporting oem lock status: %s", err)
	}
}

//ExportBootID publishes a fresh per-boot session identifier.
func ExportBootID(s *Store) {
	if err := s.Set("ro.boot.bootid", uuid.New().String()); err != nil {
		log.Logf("exporting boot id: %s", err)
	}
}
