// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package boot is the stage controller: it brings the process from a
// near-bare kernel state through policy load, re-executes itself into the
// post-policy domain, and sequences the second-stage bring-up into the
// supervisor loop. There is exactly one World per process; singleness comes
// from the construction site in cmd/ginit, not from package state.
package boot

import (
	"github.com/purecloudlabs/ginit/pkg/action"
	"github.com/purecloudlabs/ginit/pkg/devmgr"
	"github.com/purecloudlabs/ginit/pkg/earlymount"
	"github.com/purecloudlabs/ginit/pkg/fstab"
	"github.com/purecloudlabs/ginit/pkg/kenv"
	"github.com/purecloudlabs/ginit/pkg/props"
	"github.com/purecloudlabs/ginit/pkg/selinux"
	"github.com/purecloudlabs/ginit/pkg/service"
	"github.com/purecloudlabs/ginit/pkg/supervisor"
)

// A handler the external rc parser registers for one section keyword
// (service, on, import). Opaque to the core.
type SectionHandler interface {
	Section() string
}

// Parser is the contract with the external boot-script parser. ParseConfig
// takes a file or a directory of files; it reports whether anything was
// loaded.
type Parser interface {
	AddSectionParser(h SectionHandler)
	ParseConfig(path string) bool
}

// World aggregates every subsystem the boot stages touch. External
// collaborators (fstab reader, coldbooter, verity, parser, section handlers,
// keychord) ship as fields so subsystems wire themselves in from cmd.
type World struct {
	Props    *props.Store
	Env      *Vector
	Actions  *action.Manager
	Services *service.Manager
	Kenv     *kenv.Importer
	Selinux  *selinux.Loader
	//created in the second stage, after restorecon
	Loop *supervisor.Loop

	Fstab    fstab.ReaderDT
	Coldboot devmgr.Coldbooter
	Verity   earlymount.VerityFunc

	Parser          Parser
	SectionHandlers []SectionHandler

	//registers the keychord device with the loop; nil when not linked
	KeychordInit func(l *supervisor.Loop) error

	//console the boot scripts hand to services wanting one
	DefaultConsole string
}

// NewWorld wires the default implementations together. The fstab reader
// defaults to "no device-tree fstab", which makes early mount a no-op until
// the filesystem manager replaces it.
func NewWorld(allowPermissive bool) *World {
	s := props.New()
	am := action.NewManager(s.Get)
	im := kenv.New(s)

	sel := selinux.NewLoader(&selinux.SysfsKernel{Root: "/sys/fs/selinux"})
	sel.AllowPermissive = allowPermissive
	sel.PermissiveRequested = im.SelinuxPermissiveRequested

	w := &World{
		Props:          s,
		Env:            NewVector(),
		Actions:        am,
		Services:       service.NewManager(),
		Kenv:           im,
		Selinux:        sel,
		Fstab:          noFstab{},
		DefaultConsole: "/dev/console",
	}
	// every mutation feeds the trigger queue; once the loop exists it also
	// clears a pending property wait
	s.OnChange(func(name, value string) {
		if w.Loop != nil {
			w.Loop.PropertyChanged(name, value)
			return
		}
		am.QueuePropertyTrigger(name, value)
	})
	return w
}

//placeholder until the filesystem manager registers its device-tree reader
type noFstab struct{}

func (noFstab) Compatible() bool               { return false }
func (noFstab) Read() ([]*fstab.Record, error) { return nil, nil }
