// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package selinux

import (
	"bufio"
	"io/fs"
	"os"
	fp "path/filepath"
	"regexp"
	"strings"

	"github.com/purecloudlabs/ginit/pkg/log"

	"golang.org/x/sys/unix"
)

//xattr holding a file's security label
const xattrName = "security.selinux"

// FileContexts maps paths to security labels via the file_contexts database:
// one anchored regex and label per line. Of all matching entries, the last
// wins.
type FileContexts struct {
	entries []ctxEntry
}

type ctxEntry struct {
	re    *regexp.Regexp
	label string
}

// LoadFileContexts reads one or more file_contexts files. Missing files are
// skipped (a device may carry only the platform database); unparseable lines
// are logged and skipped.
func LoadFileContexts(paths ...string) (*FileContexts, error) {
	fc := &FileContexts{}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			re, err := regexp.Compile("^(?:" + fields[0] + ")$")
			if err != nil {
				log.Logf("%s: bad pattern %q: %s", path, fields[0], err)
				continue
			}
			fc.entries = append(fc.entries, ctxEntry{re: re, label: fields[len(fields)-1]})
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	return fc, nil
}

//Lookup returns the label for path, or false if no entry matches.
func (fc *FileContexts) Lookup(path string) (string, bool) {
	label := ""
	for _, e := range fc.entries {
		if e.re.MatchString(path) {
			label = e.label
		}
	}
	return label, label != "" && label != "<<none>>"
}

func (l *Loader) initContexts() error {
	fc, err := LoadFileContexts(l.FileContextsPaths...)
	if err != nil {
		return err
	}
	l.contexts = fc
	return nil
}

// Restore relabels path per the file_contexts database. Paths with no
// matching entry are left alone. The database is loaded lazily so the first
// stage can relabel its own binary right after policy load.
func (l *Loader) Restore(path string) error {
	if l.contexts == nil {
		if err := l.initContexts(); err != nil {
			return err
		}
	}
	label, ok := l.contexts.Lookup(path)
	if !ok {
		log.Vlogf("restorecon: no label for %s", path)
		return nil
	}
	if err := unix.Lsetxattr(path, xattrName, append([]byte(label), 0), 0); err != nil {
		return err
	}
	return nil
}

//Restore, recursively. Errors on individual entries are logged, not fatal.
func (l *Loader) RestoreRecursive(path string) error {
	if l.contexts == nil {
		if err := l.initContexts(); err != nil {
			return err
		}
	}
	return fp.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Vlogf("restorecon: %s: %s", p, err)
			return nil
		}
		if err := l.Restore(p); err != nil {
			log.Logf("restorecon: %s: %s", p, err)
		}
		return nil
	})
}
