// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Ginit is the first user-space process on an embedded Linux platform: it
// brings up the userland from a near-bare kernel state and then supervises
// it for the lifetime of the system.
//
// Boot happens in two stages of the same binary:
//
//   - first stage: runs in the kernel's MAC domain. Assembles the minimal
//     filesystem tree (/dev, /proc, /sys, selinuxfs, the early device
//     nodes), mounts the odm/system/vendor partitions from a
//     device-tree-supplied fstab (driving coldboot and dm-verity as
//     needed), loads mandatory-access-control policy, and re-executes
//     itself.
//
//   - second stage: runs in the post-policy domain. Rebuilds state from the
//     kernel command line and device tree, brings up the property store and
//     its service socket, loads the boot scripts, queues the fixed boot
//     event sequence, and enters a single-threaded epoll supervisor loop
//     that starts, monitors, and restarts services while reacting to kernel
//     events, property mutations, and control messages.
//
// The binary is multi-call: invoked as ueventd or watchdogd, control
// transfers to that subsystem instead. Nothing persists across reboots;
// every boot rebuilds all state from kernel inputs and on-disk scripts.
//
// Fatal conditions never exit: the single panic routine requests a reboot
// to the bootloader.
package ginit
