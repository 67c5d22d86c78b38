// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package selinux loads mandatory-access-control policy into the kernel and
// reconciles the enforcing state. Three policy variants exist, tried in
// order: a precompiled policy on the vendor partition (valid only if its
// platform hash matches the system image), policy compiled on the fly from
// split CIL sources, and a monolithic binary policy.
package selinux

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/purecloudlabs/ginit/pkg/log"
	"github.com/purecloudlabs/ginit/pkg/supervisor"
)

// Kernel is the policy-load surface of the selinuxfs. An interface so the
// loader's selection logic is testable without a policy-capable kernel.
type Kernel interface {
	//highest policy language version the kernel supports
	PolicyVers() (int, error)
	//load the binary policy at path
	LoadPolicy(path string) error
	Enforcing() (bool, error)
	SetEnforcing(enforce bool) error
	SetCheckReqProt(enabled bool) error
}

//Kernel backed by a mounted selinuxfs.
type SysfsKernel struct {
	//mount point, normally /sys/fs/selinux
	Root string
}

func (k *SysfsKernel) PolicyVers() (int, error) {
	data, err := os.ReadFile(k.Root + "/policyvers")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func (k *SysfsKernel) LoadPolicy(path string) error {
	policy, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return os.WriteFile(k.Root+"/load", policy, 0)
}

func (k *SysfsKernel) Enforcing() (bool, error) {
	data, err := os.ReadFile(k.Root + "/enforce")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

func (k *SysfsKernel) SetEnforcing(enforce bool) error {
	return os.WriteFile(k.Root+"/enforce", []byte(boolToDigit(enforce)), 0)
}

func (k *SysfsKernel) SetCheckReqProt(enabled bool) error {
	return os.WriteFile(k.Root+"/checkreqprot", []byte(boolToDigit(enabled)), 0)
}

func boolToDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

type Loader struct {
	Kernel Kernel
	//environment for the policy compiler child
	Env []string

	PrecompiledPolicy  string
	PrecompiledPlatSha string
	PlatCILSha         string
	PlatCIL            string
	MappingCIL         string
	NonPlatCIL         string
	MonolithicPolicy   string
	CompilerPath       string
	//null device for compiler output we discard; /dev/null is not yet available
	CompileNull string
	//tmpfs dir for the compiled policy, available this early in boot
	TmpDir string

	//permissive mode may only be requested when the build allows it
	AllowPermissive     bool
	PermissiveRequested func() bool

	FileContextsPaths []string
	contexts          *FileContexts
}

func NewLoader(k Kernel) *Loader {
	return &Loader{
		Kernel:             k,
		PrecompiledPolicy:  "/vendor/etc/selinux/precompiled_sepolicy",
		PrecompiledPlatSha: "/vendor/etc/selinux/precompiled_sepolicy.plat.sha256",
		PlatCILSha:         "/system/etc/selinux/plat_sepolicy.cil.sha256",
		PlatCIL:            "/system/etc/selinux/plat_sepolicy.cil",
		MappingCIL:         "/vendor/etc/selinux/mapping_sepolicy.cil",
		NonPlatCIL:         "/vendor/etc/selinux/nonplat_sepolicy.cil",
		MonolithicPolicy:   "/sepolicy",
		CompilerPath:       "/system/bin/secilc",
		CompileNull:        "/sys/fs/selinux/null",
		TmpDir:             "/dev",
		FileContextsPaths:  []string{"/plat_file_contexts", "/nonplat_file_contexts"},
	}
}

// Initialize is the per-stage policy bring-up. In the kernel domain (first
// stage) it loads policy, reconciles enforcing state, and disables
// checkreqprot; the elapsed time crosses the re-exec in INIT_SELINUX_TOOK.
// In the second stage it only initializes the label database for restorecon.
func (l *Loader) Initialize(inKernelDomain bool) error {
	if !inKernelDomain {
		return l.initContexts()
	}

	t := supervisor.NewTimer()
	log.Logf("Loading SELinux policy")
	if err := l.LoadPolicy(); err != nil {
		return err
	}

	kernelEnforcing, err := l.Kernel.Enforcing()
	if err != nil {
		return fmt.Errorf("reading enforce state: %w", err)
	}
	if enforcing := l.IsEnforcing(); kernelEnforcing != enforcing {
		if err := l.Kernel.SetEnforcing(enforcing); err != nil {
			return fmt.Errorf("setting enforce=%v: %w", enforcing, err)
		}
	}
	if err := l.Kernel.SetCheckReqProt(false); err != nil {
		return fmt.Errorf("disabling checkreqprot: %w", err)
	}

	os.Setenv("INIT_SELINUX_TOOK", strconv.FormatInt(t.ElapsedMS(), 10))
	return nil
}

//IsEnforcing resolves the desired enforcing state.
func (l *Loader) IsEnforcing() bool {
	if l.AllowPermissive && l.PermissiveRequested != nil && l.PermissiveRequested() {
		return false
	}
	return true
}
