// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package service

import "time"

//test hooks into otherwise-unexported state

func (s *Service) SetTimeStarted(t time.Time) { s.timeStarted = t }
func (s *Service) SetPid(pid int)             { s.pid = pid }
func (s *Service) ForceFlags(f Flag)          { s.flags = f }
