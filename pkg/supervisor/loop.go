// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package supervisor runs the single-threaded event loop at the heart of the
// boot core. One epoll instance owns every registered descriptor; each loop
// iteration drains at most one boot command, runs the service restart pass,
// then sleeps in epoll until a descriptor fires or a restart deadline
// arrives. Callbacks must not block: long operations are modeled as state
// transitions observed on later iterations.
package supervisor

import (
	"time"

	"github.com/purecloudlabs/ginit/pkg/action"
	"github.com/purecloudlabs/ginit/pkg/log"
	"github.com/purecloudlabs/ginit/pkg/props"
	"github.com/purecloudlabs/ginit/pkg/service"

	"golang.org/x/sys/unix"
)

type Loop struct {
	epfd      int
	callbacks map[int]func()

	props   *props.Store
	actions *action.Manager

	waitingForExec *Timer
	waitingForProp *Timer
	waitPropName   string
	waitPropValue  string

	//earliest service restart deadline; zero means none pending
	restartAt time.Time
}

func NewLoop(s *props.Store, am *action.Manager) (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Loop{
		epfd:      epfd,
		callbacks: make(map[int]func()),
		props:     s,
		actions:   am,
	}, nil
}

func (l *Loop) Close() {
	unix.Close(l.epfd)
	l.epfd = -1
}

// Register binds fn to fd. The closure is owned by the loop and dispatched
// whenever fd is readable.
func (l *Loop) Register(fd int, fn func()) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	l.callbacks[fd] = fn
	return nil
}

// Run drives the supervisor forever. It never returns; fatal conditions
// inside callbacks go through log.Fatalf.
func (l *Loop) Run(sm *service.Manager) {
	for {
		l.Iterate(sm)
	}
}

// Iterate performs one supervisor step: drain one command and run the
// restart pass (unless a wait guard is up), then poll once and dispatch one
// ready callback. Exported so tests can single-step the loop.
func (l *Loop) Iterate(sm *service.Manager) {
	if !l.Waiting() {
		l.actions.ExecuteOneCommand()
		l.restartAt = sm.RestartProcesses(time.Now())
	}

	// by default, sleep until something happens
	timeout := -1
	if !l.restartAt.IsZero() {
		timeout = int(time.Until(l.restartAt).Milliseconds())
		if timeout < 0 {
			timeout = 0
		}
	}
	// if there's more work to do, wake up again immediately
	if l.actions.HasMoreCommands() {
		timeout = 0
	}

	var events [1]unix.EpollEvent
	n, err := unix.EpollWait(l.epfd, events[:], timeout)
	if err == unix.EINTR {
		return
	}
	if err != nil {
		log.Logf("epoll_wait: %s", err)
		return
	}
	if n == 1 {
		if fn := l.callbacks[int(events[0].Fd)]; fn != nil {
			fn()
		}
	}
}
