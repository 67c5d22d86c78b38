// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package service

import (
	"os"
	"os/signal"

	"github.com/purecloudlabs/ginit/pkg/log"

	"golang.org/x/sys/unix"
)

//registers a file descriptor with the event loop; satisfied by supervisor.Loop
type Registrar interface {
	Register(fd int, fn func()) error
}

// StartSignalHandling funnels SIGCHLD through a self-pipe registered with the
// event loop. The loop callback drains the pipe and then reaps every exited
// child in one pass, so a burst of exits cannot race the poller.
func StartSignalHandling(reg Registrar, m *Manager) error {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return err
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGCHLD)
	go func() {
		b := []byte{0}
		for range ch {
			for {
				_, err := unix.Write(fds[1], b)
				if err != unix.EINTR {
					break
				}
			}
		}
	}()

	return reg.Register(fds[0], func() {
		drainPipe(fds[0])
		m.ReapAnyOutstandingChildren()
	})
}

func drainPipe(fd int) {
	buf := make([]byte, 32)
	for {
		_, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return
		}
	}
}

// ReapAnyOutstandingChildren collects every exited child without blocking.
// Children that are not registered services (policy compiler, helpers) are
// logged and forgotten.
func (m *Manager) ReapAnyOutstandingChildren() {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil || pid <= 0 {
			return
		}
		svc := m.findByPid(pid)
		if svc == nil {
			log.Logf("untracked pid %d exited, status %#x", pid, int(status))
			continue
		}
		if status.Signaled() {
			log.Logf("service %s (pid %d) killed by signal %d", svc.Name, pid, status.Signal())
		} else {
			log.Logf("service %s (pid %d) exited with status %d", svc.Name, pid, status.ExitStatus())
		}
		svc.Reap(status)
	}
}
