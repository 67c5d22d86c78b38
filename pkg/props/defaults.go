// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package props

import (
	"bufio"
	"os"
	"strings"

	"github.com/purecloudlabs/ginit/pkg/log"
)

//default property file baked into the ramdisk
const BootDefaultsPath = "/default.prop"

// LoadBootDefaults reads key=value lines from path into the store. Missing
// file is fine; malformed lines are skipped.
func LoadBootDefaults(s *Store, path string) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Logf("loading %s: %s", path, err)
		}
		return
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if err := s.Set(strings.TrimSpace(k), strings.TrimSpace(v)); err != nil {
			log.Logf("default property %s: %s", k, err)
			continue
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		log.Logf("reading %s: %s", path, err)
	}
	log.Logf("loaded %d default properties from %s", n, path)
}
