// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package log_test

import (
	"os"
	fp "path/filepath"
	"strings"
	"testing"

	"github.com/purecloudlabs/ginit/pkg/log"
)

func TestKmsgLog(t *testing.T) {
	log.DefaultLogStack()
	defer log.DefaultLogStack()

	dir := t.TempDir()
	fake := fp.Join(dir, "kmsg")
	if err := os.WriteFile(fake, nil, 0644); err != nil {
		t.Fatal(err)
	}
	oldPath := log.KmsgPath
	log.KmsgPath = fake
	defer func() { log.KmsgPath = oldPath }()

	log.Log("buffered before the sink exists")
	if err := log.AddKmsgLog("init", false); err != nil {
		t.Fatal(err)
	}
	log.Logf("after: %d", 42)
	log.Vlogf("suppressed chatter")
	log.Finalize()

	data, err := os.ReadFile(fake)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		"<6>init: buffered before the sink exists\n",
		"<6>init: after: 42\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "suppressed chatter") {
		t.Errorf("verbose line emitted without verbose mode: %q", out)
	}
}
