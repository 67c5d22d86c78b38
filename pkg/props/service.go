// Copyright (C) 2015-2020 the Ginit Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package props

import (
	"fmt"
	"os"
	"strings"

	"github.com/purecloudlabs/ginit/pkg/log"

	"golang.org/x/sys/unix"
)

//Path of the property service socket. Var, not const, for tests.
var SocketPath = "/dev/socket/property_service"

// Registers a file descriptor with the event loop; satisfied by
// supervisor.Loop.
type Registrar interface {
	Register(fd int, fn func()) error
}

// StartService binds the property service socket and registers it with the
// event loop. Each datagram is a single name=value write; sender credentials
// feed the audit annotation. The socket fd is returned so tests can close it.
func StartService(s *Store, reg Registrar) (int, error) {
	_ = os.Remove(SocketPath)
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("property service socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: SocketPath}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("binding %s: %w", SocketPath, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_PASSCRED, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("SO_PASSCRED on %s: %w", SocketPath, err)
	}
	if err := os.Chmod(SocketPath, 0666); err != nil {
		log.Logf("chmod %s: %s", SocketPath, err)
	}
	if err := reg.Register(fd, func() { drainSocket(s, fd) }); err != nil {
		unix.Close(fd)
		return -1, err
	}
	log.Logf("property service listening on %s", SocketPath)
	return fd, nil
}

//read writes until the socket would block; dispatched from the event loop
func drainSocket(s *Store, fd int) {
	buf := make([]byte, ValueMax+128)
	oob := make([]byte, unix.CmsgSpace(unix.SizeofUcred))
	for {
		n, oobn, _, _, err := unix.Recvmsg(fd, buf, oob, 0)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		if err != nil {
			log.Logf("property service read: %s", err)
			return
		}
		cr := parseCred(oob[:oobn])
		name, value, ok := strings.Cut(strings.TrimRight(string(buf[:n]), "\x00\n"), "=")
		if !ok {
			log.Logf("property service: malformed write %q", string(buf[:n]))
			continue
		}
		if err := s.SetFrom(name, value, cr); err != nil {
			log.Logf("property service: %s", err)
		}
	}
}

func parseCred(oob []byte) *unix.Ucred {
	if len(oob) == 0 {
		return nil
	}
	cmsgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil
	}
	for _, cmsg := range cmsgs {
		if cmsg.Header.Level == unix.SOL_SOCKET && cmsg.Header.Type == unix.SCM_CREDENTIALS {
			cr, err := unix.ParseUnixCredentials(&cmsg)
			if err == nil {
				return cr
			}
		}
	}
	return nil
}
