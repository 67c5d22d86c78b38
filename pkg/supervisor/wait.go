// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package supervisor

import (
	"github.com/purecloudlabs/ginit/pkg/log"
)

// The supervisor owns at most one of each wait guard. While either is up,
// no boot command executes.

func (l *Loop) Waiting() bool {
	return l.waitingForExec != nil || l.waitingForProp != nil
}

//blocks command execution while an exec'd command is in flight
func (l *Loop) StartWaitingForExec() bool {
	if l.waitingForExec != nil {
		return false
	}
	l.waitingForExec = NewTimer()
	return true
}

func (l *Loop) StopWaitingForExec() {
	if l.waitingForExec != nil {
		log.Logf("Wait for exec took %s", l.waitingForExec)
		l.waitingForExec = nil
	}
}

// StartWaitingForProperty blocks command execution until name takes value.
// No wait is installed when the property already has the wanted value.
// Returns false if a property wait is already up.
func (l *Loop) StartWaitingForProperty(name, value string) bool {
	if l.waitingForProp != nil {
		return false
	}
	if l.props.Get(name) != value {
		l.waitPropName = name
		l.waitPropValue = value
		l.waitingForProp = NewTimer()
	} else {
		log.Logf("start_waiting_for_property(%q, %q): already set", name, value)
	}
	return true
}

// PropertyChanged is the mutation observer: it feeds the action manager's
// property-trigger queue and clears a matching property wait synchronously,
// so a satisfied wait is observed before the next command drains.
func (l *Loop) PropertyChanged(name, value string) {
	l.actions.QueuePropertyTrigger(name, value)
	if l.waitingForProp != nil && l.waitPropName == name && l.waitPropValue == value {
		log.Logf("Wait for property took %s", l.waitingForProp)
		l.waitPropName = ""
		l.waitPropValue = ""
		l.waitingForProp = nil
	}
}
