// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package action_test

import (
	"reflect"
	"testing"

	"github.com/purecloudlabs/ginit/pkg/action"
	"github.com/purecloudlabs/ginit/pkg/log/testlog"
)

func drain(m *action.Manager, max int) {
	for i := 0; i < max && m.HasMoreCommands(); i++ {
		m.ExecuteOneCommand()
	}
}

func TestBuiltinFIFO(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	m := action.NewManager(func(string) string { return "" })
	var ran []string
	mark := func(name string) action.BuiltinFunc {
		return func(args []string) int { ran = append(ran, name); return 0 }
	}
	m.QueueBuiltinAction(mark("a"), "a")
	m.QueueBuiltinAction(mark("b"), "b")
	m.QueueBuiltinAction(mark("c"), "c")

	drain(m, 100)
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(ran, want) {
		t.Errorf("want %v got %v", want, ran)
	}
	if m.HasMoreCommands() {
		t.Error("queue not drained")
	}
}

func TestOneCommandPerCall(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	m := action.NewManager(func(string) string { return "" })
	var ran []string
	fm := action.FunctionMap{
		"mark": func(args []string) int { ran = append(ran, args[1]); return 0 },
	}
	a := action.NewEvent("early-init")
	for _, text := range []string{"mark one", "mark two", "mark three"} {
		cmd, err := action.NewCommand(text, fm)
		if err != nil {
			t.Fatal(err)
		}
		a.AddCommand(cmd)
	}
	m.AddAction(a)
	m.QueueEventTrigger("early-init")

	m.ExecuteOneCommand()
	if len(ran) != 1 {
		t.Fatalf("one call must drain exactly one command, ran %v", ran)
	}
	drain(m, 100)
	if want := []string{"one", "two", "three"}; !reflect.DeepEqual(ran, want) {
		t.Errorf("want %v got %v", want, ran)
	}
}

func TestEventAndBuiltinInterleave(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	m := action.NewManager(func(string) string { return "" })
	var ran []string
	fm := action.FunctionMap{
		"mark": func(args []string) int { ran = append(ran, args[1]); return 0 },
	}
	a := action.NewEvent("init")
	cmd, err := action.NewCommand("mark event", fm)
	if err != nil {
		t.Fatal(err)
	}
	a.AddCommand(cmd)
	m.AddAction(a)

	m.QueueBuiltinAction(func([]string) int { ran = append(ran, "pre"); return 0 }, "pre")
	m.QueueEventTrigger("init")
	m.QueueBuiltinAction(func([]string) int { ran = append(ran, "post"); return 0 }, "post")

	drain(m, 100)
	if want := []string{"pre", "event", "post"}; !reflect.DeepEqual(ran, want) {
		t.Errorf("enqueue order not preserved: want %v got %v", want, ran)
	}
}

func TestPropertyTriggerGating(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	values := map[string]string{}
	m := action.NewManager(func(name string) string { return values[name] })
	fired := 0
	a := action.NewPropertyTriggered(map[string]string{"sys.boot_completed": "1"})
	cmd, err := action.NewCommand("mark", action.FunctionMap{
		"mark": func([]string) int { fired++; return 0 },
	})
	if err != nil {
		t.Fatal(err)
	}
	a.AddCommand(cmd)
	m.AddAction(a)

	//observation arrives before the latch: held, not fired
	values["sys.boot_completed"] = "1"
	m.QueuePropertyTrigger("sys.boot_completed", "1")
	drain(m, 100)
	if fired != 0 {
		t.Fatal("property trigger fired before the latch")
	}

	m.EnableTriggers()
	drain(m, 100)
	if fired != 1 {
		t.Fatalf("held trigger fired %d times after the latch", fired)
	}

	//a fresh observation fires again, exactly once
	m.QueuePropertyTrigger("sys.boot_completed", "1")
	m.QueuePropertyTrigger("sys.boot_completed", "1") //pending dupe collapses
	drain(m, 100)
	if fired != 2 {
		t.Fatalf("fired %d times", fired)
	}
}

func TestPropertyTriggerPredicates(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)
	defer tlog.Freeze()

	values := map[string]string{}
	m := action.NewManager(func(name string) string { return values[name] })
	m.EnableTriggers()

	fired := 0
	a := action.NewPropertyTriggered(map[string]string{"sys.a": "1", "sys.b": "2"})
	cmd, err := action.NewCommand("mark", action.FunctionMap{
		"mark": func([]string) int { fired++; return 0 },
	})
	if err != nil {
		t.Fatal(err)
	}
	a.AddCommand(cmd)
	m.AddAction(a)

	//only one of the two predicates holds
	values["sys.a"] = "1"
	m.QueuePropertyTrigger("sys.a", "1")
	drain(m, 100)
	if fired != 0 {
		t.Fatal("fired with unsatisfied predicate")
	}

	values["sys.b"] = "2"
	m.QueuePropertyTrigger("sys.b", "2")
	drain(m, 100)
	if fired != 1 {
		t.Fatalf("fired %d times", fired)
	}
}

func TestBuiltinFailureLogged(t *testing.T) {
	tlog := testlog.NewTestLog(t, true, false)

	m := action.NewManager(func(string) string { return "" })
	m.QueueBuiltinAction(func([]string) int { return -1 }, "flaky")
	m.QueueBuiltinAction(func([]string) int { return 0 }, "next")
	drain(m, 100)

	tlog.Freeze()
	if tlog.FatalCount != 0 {
		t.Error("non-zero builtin must not be fatal")
	}
	if tlog.LogCount == 0 {
		t.Error("non-zero builtin status not logged")
	}
}

func TestUnknownCommandRejected(t *testing.T) {
	_, err := action.NewCommand("frobnicate /dev", action.FunctionMap{})
	if err == nil {
		t.Error("unknown command accepted")
	}
	_, err = action.NewCommand("write /sys/foo 'unterminated", action.FunctionMap{
		"write": func([]string) int { return 0 },
	})
	if err == nil {
		t.Error("bad quoting accepted")
	}
}

func TestCommandArgSplitting(t *testing.T) {
	var got []string
	fm := action.FunctionMap{
		"write": func(args []string) int { got = args; return 0 },
	}
	cmd, err := action.NewCommand(`write /data/local.prop "a b c"`, fm)
	if err != nil {
		t.Fatal(err)
	}
	cmd.Func(cmd.Args)
	want := []string{"write", "/data/local.prop", "a b c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("want %v got %v", want, got)
	}
}
