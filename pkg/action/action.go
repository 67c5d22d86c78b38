// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package action holds the one-shot units of boot work and the trigger
// queues that sequence them. An action is a named list of commands bound to
// a trigger: an event name, a property predicate, or a builtin function
// queued directly by the boot stages. The supervisor drains at most one
// command per loop iteration, so a long action never starves the event loop.
package action

import (
	"fmt"
	"strings"

	"github.com/purecloudlabs/ginit/pkg/log"

	"github.com/google/shlex"
)

//Builtins return an integer status; non-zero is logged, not fatal.
type BuiltinFunc func(args []string) int

//FunctionMap resolves command names from the boot-script parser to builtins.
type FunctionMap map[string]BuiltinFunc

type Command struct {
	Args []string
	Func BuiltinFunc
	raw  string
}

// NewCommand splits rc command text into an argv vector and resolves the
// command name against fm.
func NewCommand(text string, fm FunctionMap) (Command, error) {
	args, err := shlex.Split(text)
	if err != nil {
		return Command{}, fmt.Errorf("parsing command %q: %w", text, err)
	}
	if len(args) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	fn, ok := fm[args[0]]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", args[0])
	}
	return Command{Args: args, Func: fn, raw: text}, nil
}

type Action struct {
	Name string

	eventTrigger string
	propTriggers map[string]string
	commands     []Command
}

//NewEvent returns an action fired by the named event.
func NewEvent(trigger string) *Action {
	return &Action{Name: trigger, eventTrigger: trigger}
}

// NewPropertyTriggered returns an action fired when every predicate in
// triggers holds. A "*" value matches any value of the observed property,
// empty included, and any non-empty value of the other properties.
func NewPropertyTriggered(triggers map[string]string) *Action {
	names := make([]string, 0, len(triggers))
	for k, v := range triggers {
		names = append(names, k+"="+v)
	}
	return &Action{Name: strings.Join(names, " && "), propTriggers: triggers}
}

func (a *Action) AddCommand(cmd Command) { a.commands = append(a.commands, cmd) }

func (a *Action) NumCommands() int { return len(a.commands) }

// CheckPropertyTrigger reports whether the observation name=value fires this
// action, all other predicates evaluated against getProp.
func (a *Action) CheckPropertyTrigger(name, value string, getProp func(string) string) bool {
	if len(a.propTriggers) == 0 {
		return false
	}
	want, ok := a.propTriggers[name]
	if !ok {
		return false
	}
	if want != "*" && want != value {
		return false
	}
	for k, want := range a.propTriggers {
		if k == name {
			continue
		}
		cur := getProp(k)
		if want == "*" {
			if cur == "" {
				return false
			}
		} else if cur != want {
			return false
		}
	}
	return true
}

//runs command i; out-of-range indices are a manager bug
func (a *Action) executeOneCommand(i int) {
	cmd := a.commands[i]
	status := cmd.Func(cmd.Args)
	if status != 0 {
		log.Logf("command '%s' action=%s returned %d", cmd.raw, a.Name, status)
	}
}
