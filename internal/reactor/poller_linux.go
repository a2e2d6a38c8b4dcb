//go:build linux
// +build linux

// File: internal/reactor/poller_linux.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Linux epoll(7)-backed Poller, adapted from the teacher's
// reactor/reactor_linux.go (edge-triggered EpollCreate1/EpollCtl/EpollWait
// usage) to implement the api.Poller contract spec.md C3 requires.

package reactor

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/hioframe/hioframe/api"
)

type epollPoller struct {
	epfd int
}

// NewPoller constructs the platform-specific api.Poller for Linux.
func NewPoller() (api.Poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: epfd}, nil
}

func (p *epollPoller) Register(fd uintptr, userData uintptr) error {
	event := &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLET,
		Fd:     int32(fd),
	}
	*(*uintptr)(unsafe.Pointer(&event.Pad)) = userData
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(fd), event)
}

func (p *epollPoller) Unregister(fd uintptr) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
}

func (p *epollPoller) Wait(events []api.Event) (int, error) {
	raw := make([]unix.EpollEvent, len(events))
	// Wait at most 100 ms so Loop.Run regularly returns to check for Stop
	// even when no registered descriptor becomes ready.
	n, err := unix.EpollWait(p.epfd, raw, 100)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		userData := *(*uintptr)(unsafe.Pointer(&raw[i].Pad))
		events[i] = api.Event{
			Fd:       uintptr(raw[i].Fd),
			UserData: userData,
			Readable: raw[i].Events&unix.EPOLLIN != 0,
			Writable: raw[i].Events&unix.EPOLLOUT != 0,
		}
	}
	return n, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
