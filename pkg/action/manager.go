// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package action

import (
	"github.com/purecloudlabs/ginit/pkg/log"
)

// Manager owns the registered actions and the trigger queues. Event and
// builtin triggers share one FIFO so boot sequencing is exactly enqueue
// order; property triggers wait in their own FIFO behind the enable latch.
type Manager struct {
	getProp func(name string) string

	actions      []*Action
	triggerQueue []trigger
	//property observations, held until the latch opens
	propQueue []propTrigger

	//actions matched by the popped trigger, executing front to back
	current    []*Action
	currentCmd int

	triggersEnabled bool
}

func NewManager(getProp func(name string) string) *Manager {
	return &Manager{getProp: getProp}
}

type trigger interface {
	matches(m *Manager, a *Action) bool
	name() string
}

type eventTrigger string

func (t eventTrigger) matches(m *Manager, a *Action) bool { return a.eventTrigger == string(t) }
func (t eventTrigger) name() string                       { return string(t) }

type builtinTrigger struct{ act *Action }

func (t builtinTrigger) matches(m *Manager, a *Action) bool { return a == t.act }
func (t builtinTrigger) name() string                       { return t.act.Name }

type propTrigger struct{ key, value string }

func (t propTrigger) matches(m *Manager, a *Action) bool {
	return a.CheckPropertyTrigger(t.key, t.value, m.getProp)
}
func (t propTrigger) name() string { return t.key + "=" + t.value }

//AddAction registers a parsed action.
func (m *Manager) AddAction(a *Action) { m.actions = append(m.actions, a) }

func (m *Manager) QueueEventTrigger(name string) {
	m.triggerQueue = append(m.triggerQueue, eventTrigger(name))
}

// QueueBuiltinAction registers a single-command action around fn and queues
// it for execution.
func (m *Manager) QueueBuiltinAction(fn BuiltinFunc, name string) {
	a := &Action{Name: name}
	a.AddCommand(Command{Func: fn, raw: name})
	m.actions = append(m.actions, a)
	m.triggerQueue = append(m.triggerQueue, builtinTrigger{act: a})
}

// QueuePropertyTrigger records a property observation. Observations queue at
// most once per (name, value): re-queuing a pending observation is a no-op.
func (m *Manager) QueuePropertyTrigger(name, value string) {
	for _, p := range m.propQueue {
		if p.key == name && p.value == value {
			return
		}
	}
	m.propQueue = append(m.propQueue, propTrigger{key: name, value: value})
}

//EnableTriggers opens the property-trigger latch.
func (m *Manager) EnableTriggers() { m.triggersEnabled = true }

func (m *Manager) TriggersEnabled() bool { return m.triggersEnabled }

// ExecuteOneCommand drains at most one command of the head action. The
// supervisor calls this once per loop iteration.
func (m *Manager) ExecuteOneCommand() {
	// loop through the queues until we have an action to execute
	for len(m.current) == 0 {
		tr, ok := m.popTrigger()
		if !ok {
			return
		}
		for _, a := range m.actions {
			if tr.matches(m, a) && a.NumCommands() > 0 {
				m.current = append(m.current, a)
			}
		}
		m.currentCmd = 0
		if len(m.current) > 0 {
			log.Vlogf("processing trigger %s", tr.name())
		}
	}

	a := m.current[0]
	a.executeOneCommand(m.currentCmd)
	m.currentCmd++
	if m.currentCmd == a.NumCommands() {
		m.current = m.current[1:]
		m.currentCmd = 0
	}
}

// HasMoreCommands is true while any drainable work remains. Property
// observations held behind the latch don't count: they cannot be drained
// yet, and counting them would spin the supervisor.
func (m *Manager) HasMoreCommands() bool {
	if len(m.current) > 0 || len(m.triggerQueue) > 0 {
		return true
	}
	return m.triggersEnabled && len(m.propQueue) > 0
}

func (m *Manager) popTrigger() (trigger, bool) {
	if len(m.triggerQueue) > 0 {
		tr := m.triggerQueue[0]
		m.triggerQueue = m.triggerQueue[1:]
		return tr, true
	}
	if m.triggersEnabled && len(m.propQueue) > 0 {
		tr := m.propQueue[0]
		m.propQueue = m.propQueue[1:]
		return tr, true
	}
	return nil, false
}
