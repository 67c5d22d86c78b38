// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/purecloudlabs/ginit/pkg/log/flags"
)

// kernel log priorities, from syslog(2)
const (
	prioErr    = 3
	prioNotice = 5
	prioInfo   = 6
	prioDebug  = 7
)

// Path of the kernel log device. Var, not const, for tests.
var KmsgPath = "/dev/kmsg"

type kmsgLog struct {
	w       io.WriteCloser
	tag     string
	verbose bool
	next    StackableLogger
}

// Adds a kmsgLog writing to /dev/kmsg. Must not be called before the device
// node exists. tag prefixes every line; pass true to also emit Vlogf events.
// Previously buffered events are replayed into the kernel log.
func AddKmsgLog(tag string, verbose bool) error {
	f, err := os.OpenFile(KmsgPath, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	return AddLogger(&kmsgLog{w: f, tag: tag, verbose: verbose}, true)
}

var _ StackableLogger = (*kmsgLog)(nil)

func (l *kmsgLog) AddEntry(e LogEntry) {
	pri := prioInfo
	switch {
	case e.Flags&flags.Fatal != 0:
		pri = prioErr
	case e.Flags&flags.EndUser != 0:
		pri = prioNotice
	case e.Flags&flags.Verbose != 0:
		pri = prioDebug
	}
	if pri != prioDebug || l.verbose {
		msg := fmt.Sprintf(e.Msg, e.Args...)
		//each kmsg record is a single line
		for _, line := range strings.Split(strings.TrimRight(msg, "\n"), "\n") {
			fmt.Fprintf(l.w, "<%d>%s: %s\n", pri, l.tag, line)
		}
	}
	if l.next != nil {
		l.next.AddEntry(e)
	}
}

func (l *kmsgLog) ForwardTo(sl StackableLogger) {
	if l.next == nil || sl == nil {
		l.next = sl
	} else {
		panic("next already set")
	}
}

const KmsgLogIdent = "kmsgLog"

func (*kmsgLog) Ident() string           { return KmsgLogIdent }
func (l *kmsgLog) Next() StackableLogger { return l.next }

func (l *kmsgLog) Finalize() {
	_ = l.w.Close()
	if l.next != nil {
		l.next.Finalize()
	}
}
