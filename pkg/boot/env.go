// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package boot

import (
	"fmt"
	"strings"

	"github.com/purecloudlabs/ginit/pkg/log"
)

//PATH every spawned child starts with
const DefaultPath = "/sbin:/system/sbin:/system/bin:/system/xbin:/vendor/bin"

//most KEY=VALUE entries the vector holds; none of them is a terminator
const maxEnv = 31

// Vector is the bounded environment inherited by every child the supervisor
// spawns. Insertion order is preserved; re-adding a key replaces its entry
// in place.
type Vector struct {
	entries []string
}

func NewVector() *Vector { return &Vector{} }

// Add sets key=val, replacing an existing entry for key. Capacity overflow
// is reported but not fatal: the child simply won't see the variable.
func (v *Vector) Add(key, val string) error {
	entry := key + "=" + val
	for i, e := range v.entries {
		k, _, _ := strings.Cut(e, "=")
		if k == key {
			v.entries[i] = entry
			return nil
		}
	}
	if len(v.entries) >= maxEnv {
		log.Logf("No env. room to store: '%s':'%s'", key, val)
		return fmt.Errorf("environment full, dropping %s", key)
	}
	v.entries = append(v.entries, entry)
	return nil
}

//Strings renders the vector for exec; the returned slice is a copy.
func (v *Vector) Strings() []string {
	out := make([]string, len(v.entries))
	copy(out, v.entries)
	return out
}

func (v *Vector) Len() int { return len(v.entries) }
