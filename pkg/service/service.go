// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package service tracks supervised child processes. Launch mechanics
// (fork/exec, sockets, capabilities, namespaces) live behind the StartFunc
// hook; this package owns lifecycle state, crash handling, and restart
// back-off.
package service

import (
	"time"

	"github.com/purecloudlabs/ginit/pkg/log"

	"golang.org/x/sys/unix"
)

type Flag uint32

const (
	//do not autostart with its class; only an explicit start will do
	FlagDisabled Flag = 1 << iota
	//do not restart on exit
	FlagOneshot
	//auto-restart requested by an explicit restart
	FlagRestart
	//exited, waiting out the back-off before relighting
	FlagRestarting
	FlagRunning
	//the system cannot run without this service; repeated crashes reboot
	FlagCritical
	//stop without disabling
	FlagReset
)

type State int

const (
	Stopped State = iota
	Running
	Restarting
	Stopping
	Disabled
)

func (st State) String() string {
	switch st {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Restarting:
		return "restarting"
	case Stopping:
		return "stopping"
	case Disabled:
		return "disabled"
	}
	return "unknown"
}

//interval a crashed service waits before relighting
const restartBackoff = 5 * time.Second

//a critical service crashing more than criticalCrashThreshold times within
//the window reboots the unit
const (
	criticalCrashThreshold = 4
	criticalCrashWindow    = 4 * time.Minute
)

//StartFunc launches the child and returns its pid. External collaborator.
type StartFunc func(s *Service) (pid int, err error)

type Service struct {
	Name string
	Args []string

	flags       Flag
	pid         int
	timeStarted time.Time
	timeCrashed time.Time
	crashCount  int

	starter StartFunc
}

func New(name string, args []string, starter StartFunc) *Service {
	return &Service{Name: name, Args: args, starter: starter}
}

func (s *Service) Flags() Flag { return s.flags }
func (s *Service) Pid() int    { return s.pid }

func (s *Service) State() State {
	switch {
	case s.flags&FlagRunning != 0:
		return Running
	case s.flags&FlagRestarting != 0:
		return Restarting
	case s.flags&FlagDisabled != 0:
		return Disabled
	default:
		return Stopped
	}
}

//SetOneshot/SetCritical/SetDisabled configure flags the parser would set.
func (s *Service) SetOneshot() *Service  { s.flags |= FlagOneshot; return s }
func (s *Service) SetCritical() *Service { s.flags |= FlagCritical; return s }
func (s *Service) SetDisabled() *Service { s.flags |= FlagDisabled; return s }

func (s *Service) Start() error {
	s.flags &^= FlagDisabled | FlagRestarting | FlagReset | FlagRestart
	if s.flags&FlagRunning != 0 {
		return nil
	}
	pid, err := s.starter(s)
	if err != nil {
		log.Logf("starting service %s: %s", s.Name, err)
		return err
	}
	s.pid = pid
	s.timeStarted = time.Now()
	s.flags |= FlagRunning
	log.Logf("service %s started, pid %d", s.Name, pid)
	return nil
}

func (s *Service) Stop()  { s.stopOrReset(FlagDisabled) }
func (s *Service) Reset() { s.stopOrReset(FlagReset) }

func (s *Service) Restart() {
	if s.flags&FlagRunning != 0 {
		//kill it now; the reaper relights it
		s.stopOrReset(FlagRestart)
	} else if s.flags&FlagRestarting == 0 {
		//stopped, start it right away
		_ = s.Start()
	}
	//else: already queued for restart, nothing to do
}

func (s *Service) stopOrReset(how Flag) {
	s.flags &^= FlagRestarting | FlagDisabled | FlagReset | FlagRestart
	s.flags |= how
	if s.pid != 0 && s.flags&FlagRunning != 0 {
		//negative pid: signal the whole process group
		if err := unix.Kill(-s.pid, unix.SIGKILL); err != nil {
			log.Logf("killing service %s (pid %d): %s", s.Name, s.pid, err)
		}
	}
}

// Reap handles the child's exit, deciding whether it restarts. A critical
// service crashing repeatedly ends the boot.
func (s *Service) Reap(status unix.WaitStatus) {
	if s.pid != 0 && (s.flags&FlagOneshot == 0 || s.flags&FlagRestart != 0) {
		//stragglers in the process group die with the main process
		_ = unix.Kill(-s.pid, unix.SIGKILL)
	}
	s.pid = 0
	s.flags &^= FlagRunning

	if s.flags&FlagOneshot != 0 && s.flags&FlagRestart == 0 {
		s.flags |= FlagDisabled
	}
	if s.flags&(FlagDisabled|FlagReset) != 0 {
		return
	}

	now := time.Now()
	if s.flags&FlagCritical != 0 && s.flags&FlagRestart == 0 {
		if now.Before(s.timeCrashed.Add(criticalCrashWindow)) {
			s.crashCount++
			if s.crashCount > criticalCrashThreshold {
				log.Fatalf("critical service %s crashed %d times in %s",
					s.Name, s.crashCount, criticalCrashWindow)
				return
			}
		} else {
			s.timeCrashed = now
			s.crashCount = 1
		}
	}

	s.flags &^= FlagRestart
	s.flags |= FlagRestarting
}

// RestartIfNeeded relights the service once its back-off has elapsed, else
// folds its next start time into the caller's running minimum.
func (s *Service) RestartIfNeeded(now time.Time, earliest *time.Time) {
	nextStart := s.timeStarted.Add(restartBackoff)
	if now.After(nextStart) {
		s.flags &^= FlagRestarting
		_ = s.Start()
		return
	}
	if earliest.IsZero() || nextStart.Before(*earliest) {
		*earliest = nextStart
	}
}
