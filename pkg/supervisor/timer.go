// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package supervisor

import (
	"fmt"
	"time"
)

// Timer marks the start of a wait and renders how long it took. time.Time
// carries the monotonic clock, so a wall-clock step cannot corrupt it.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer { return &Timer{start: time.Now()} }

func (t *Timer) ElapsedMS() int64 { return time.Since(t.start).Milliseconds() }

func (t *Timer) String() string { return fmt.Sprintf("%dms", t.ElapsedMS()) }
