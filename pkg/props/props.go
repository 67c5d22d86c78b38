// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package props implements the system property store: string key/value pairs,
// broadcast on mutation, with writes annotated by an audit callback. Keys are
// dot-separated; ro.* keys are write-once. State lives for the process
// lifetime only - every boot rebuilds it from the kernel command line, device
// tree, and default property files.
package props

import (
	"fmt"
	"strings"
	"sync"

	"github.com/purecloudlabs/ginit/pkg/log"

	"golang.org/x/sys/unix"
)

//longest permitted property value, including terminator on the wire
const ValueMax = 92

// Annotates a property write attempt with the identity of the writer. cr is
// nil for writes originating in this process.
type AuditFunc func(name string, cr *unix.Ucred) string

//observer invoked after each successful mutation
type ChangedFunc func(name, value string)

//receiver for writes on the control channel (ctl.*)
type ControlFunc func(msg, name string)

type Store struct {
	mu          sync.Mutex
	values      map[string]string
	initialized bool
	onChange    ChangedFunc
	onControl   ControlFunc
	audit       AuditFunc
}

func New() *Store {
	return &Store{
		values: make(map[string]string),
		audit:  DefaultAudit,
	}
}

// Init marks the store writable. Sets before Init indicate a sequencing bug
// in the boot stages and are rejected.
func (s *Store) Init() {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

//Install the mutation observer. At most one; nil clears.
func (s *Store) OnChange(fn ChangedFunc) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

//Install the control channel handler; see ControlFunc.
func (s *Store) OnControl(fn ControlFunc) {
	s.mu.Lock()
	s.onControl = fn
	s.mu.Unlock()
}

func (s *Store) SetAudit(fn AuditFunc) {
	s.mu.Lock()
	s.audit = fn
	s.mu.Unlock()
}

//Get returns the property value, or "" if unset.
func (s *Store) Get(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[name]
}

// Set stores a property originating in this process and broadcasts the
// mutation. ctl.* keys are not stored; they are routed to the control
// handler.
func (s *Store) Set(name, value string) error {
	return s.SetFrom(name, value, nil)
}

// SetFrom is Set for writes arriving over the property service socket; cr
// carries the sender's credentials for the audit annotation.
func (s *Store) SetFrom(name, value string, cr *unix.Ucred) error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return fmt.Errorf("property store not initialized: %s", name)
	}
	if !LegalName(name) {
		s.mu.Unlock()
		return fmt.Errorf("illegal property name %q", name)
	}
	if len(value) >= ValueMax {
		s.mu.Unlock()
		return fmt.Errorf("property %s value too long (%d >= %d)", name, len(value), ValueMax)
	}
	if s.audit != nil {
		log.Vlogf("property write: %s", s.audit(name, cr))
	}
	if strings.HasPrefix(name, "ctl.") {
		ctl := s.onControl
		s.mu.Unlock()
		if ctl == nil {
			log.Logf("no control handler for %s=%s", name, value)
			return nil
		}
		ctl(strings.TrimPrefix(name, "ctl."), value)
		return nil
	}
	if strings.HasPrefix(name, "ro.") {
		if _, exists := s.values[name]; exists {
			s.mu.Unlock()
			return fmt.Errorf("property %s already set", name)
		}
	}
	s.values[name] = value
	changed := s.onChange
	s.mu.Unlock()
	if changed != nil {
		changed(name, value)
	}
	return nil
}

//LegalName reports whether name is a well-formed dot-separated property key.
func LegalName(name string) bool {
	if len(name) == 0 || len(name) >= 32 {
		return false
	}
	if name[0] == '.' || name[len(name)-1] == '.' {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-' || c == '@' || c == ':':
		default:
			return false
		}
	}
	return true
}

// DefaultAudit renders the writer's identity the way the kernel audit
// subsystem expects it.
func DefaultAudit(name string, cr *unix.Ucred) string {
	if cr == nil {
		return fmt.Sprintf("property=%s pid=%d uid=%d gid=%d", name, unix.Getpid(), unix.Getuid(), unix.Getgid())
	}
	return fmt.Sprintf("property=%s pid=%d uid=%d gid=%d", name, cr.Pid, cr.Uid, cr.Gid)
}
