// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package service

import (
	"time"

	"github.com/purecloudlabs/ginit/pkg/log"
)

type Manager struct {
	services []*Service
}

func NewManager() *Manager { return &Manager{} }

func (m *Manager) Add(s *Service) { m.services = append(m.services, s) }

func (m *Manager) FindByName(name string) *Service {
	for _, s := range m.services {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (m *Manager) findByPid(pid int) *Service {
	for _, s := range m.services {
		if s.pid == pid {
			return s
		}
	}
	return nil
}

func (m *Manager) ForEachRestarting(fn func(s *Service)) {
	for _, s := range m.services {
		if s.flags&FlagRestarting != 0 {
			fn(s)
		}
	}
}

// RestartProcesses runs the restart pass: every service waiting out its
// back-off either relights or contributes to the earliest-restart deadline.
// The zero time means nothing is pending.
func (m *Manager) RestartProcesses(now time.Time) time.Time {
	var earliest time.Time
	m.ForEachRestarting(func(s *Service) {
		s.RestartIfNeeded(now, &earliest)
	})
	return earliest
}

// HandleControlMessage services a ctl.start/ctl.stop/ctl.restart property
// write. Unknown services and verbs are logged and dropped.
func (m *Manager) HandleControlMessage(msg, name string) {
	svc := m.FindByName(name)
	if svc == nil {
		log.Logf("no such service '%s'", name)
		return
	}
	switch msg {
	case "start":
		_ = svc.Start()
	case "stop":
		svc.Stop()
	case "restart":
		svc.Restart()
	default:
		log.Logf("unknown control msg '%s'", msg)
	}
}
