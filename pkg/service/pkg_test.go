// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package service_test

import (
	"testing"
	"time"

	"github.com/purecloudlabs/ginit/pkg/log/testlog"
	"github.com/purecloudlabs/ginit/pkg/service"

	"golang.org/x/sys/unix"
)

//a starter that never touches a real process
func fakeStarter(pid int, calls *int) service.StartFunc {
	return func(s *service.Service) (int, error) {
		*calls++
		return pid, nil
	}
}

func TestStartStateTransitions(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	calls := 0
	s := service.New("netd", []string{"/system/bin/netd"}, fakeStarter(0, &calls))
	if s.State() != service.Stopped {
		t.Errorf("initial state %s", s.State())
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if s.State() != service.Running || calls != 1 {
		t.Errorf("state %s after %d starts", s.State(), calls)
	}
	//starting a running service is a no-op
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("running service relaunched, %d calls", calls)
	}
}

func TestReapRestartPolicy(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	calls := 0
	s := service.New("netd", nil, fakeStarter(0, &calls))
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.SetPid(0) //don't signal anything real in Reap
	s.Reap(unix.WaitStatus(0))
	if s.State() != service.Restarting {
		t.Errorf("crashed service in state %s", s.State())
	}

	oneshot := service.New("bootanim", nil, fakeStarter(0, &calls)).SetOneshot()
	if err := oneshot.Start(); err != nil {
		t.Fatal(err)
	}
	oneshot.SetPid(0)
	oneshot.Reap(unix.WaitStatus(0))
	if oneshot.State() != service.Disabled {
		t.Errorf("exited oneshot in state %s", oneshot.State())
	}
}

func TestRestartBackoff(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	calls := 0
	s := service.New("netd", nil, fakeStarter(0, &calls))
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	calls = 0
	s.SetPid(0)
	s.Reap(unix.WaitStatus(0))

	now := time.Now()

	//back-off still running: no relight, deadline recorded
	s.SetTimeStarted(now.Add(-time.Second))
	var earliest time.Time
	s.RestartIfNeeded(now, &earliest)
	if calls != 0 {
		t.Fatal("relit inside back-off")
	}
	if earliest.IsZero() {
		t.Fatal("no deadline recorded")
	}
	if got := earliest.Sub(now); got <= 0 || got > 5*time.Second {
		t.Errorf("deadline %s out", got)
	}

	//back-off elapsed: relight
	s.SetTimeStarted(now.Add(-6 * time.Second))
	earliest = time.Time{}
	s.RestartIfNeeded(now, &earliest)
	if calls != 1 {
		t.Errorf("relit %d times", calls)
	}
	if !earliest.IsZero() {
		t.Errorf("deadline %v after relight", earliest)
	}
	if s.State() != service.Running {
		t.Errorf("state %s", s.State())
	}
}

func TestRestartProcessesEarliest(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	calls := 0
	m := service.NewManager()
	now := time.Now()

	near := service.New("near", nil, fakeStarter(0, &calls))
	near.ForceFlags(service.FlagRestarting)
	near.SetTimeStarted(now.Add(-4 * time.Second)) //1s out
	far := service.New("far", nil, fakeStarter(0, &calls))
	far.ForceFlags(service.FlagRestarting)
	far.SetTimeStarted(now.Add(-2 * time.Second)) //3s out
	m.Add(near)
	m.Add(far)

	earliest := m.RestartProcesses(now)
	if earliest.IsZero() {
		t.Fatal("no deadline")
	}
	if got := earliest.Sub(now); got > time.Second+50*time.Millisecond {
		t.Errorf("earliest %s is not the running minimum", got)
	}
}

func TestHandleControlMessage(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)

	calls := 0
	m := service.NewManager()
	m.Add(service.New("foo", nil, fakeStarter(0, &calls)))

	m.HandleControlMessage("start", "foo")
	if calls != 1 {
		t.Errorf("ctl.start ran starter %d times", calls)
	}

	//unknown names and verbs log and drop
	m.HandleControlMessage("start", "no-such-service")
	m.HandleControlMessage("frob", "foo")

	tlog.Freeze()
	if tlog.FatalCount != 0 {
		t.Error("control path must not be fatal")
	}
}
