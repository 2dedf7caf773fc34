//go:build linux

package can

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
	"unsafe"
)

// Linux SocketCAN constants (linux/can.h).
const (
	afCAN        = 29
	canRaw       = 1
	canFrameSize = 16
	canEffFlag   = 0x80000000
	canRtrFlag   = 0x40000000
	canErrFlag   = 0x20000000
	canSffMask   = 0x7FF
)

// socketCAN is a raw AF_CAN socket bound to one interface. The fd is set
// non-blocking and wrapped in an os.File so reads park in the runtime
// poller and Close unblocks them.
type socketCAN struct {
	file *os.File
}

// DialSocketCAN opens a receive-only view of the given interface
// (e.g. "can0").
func DialSocketCAN(iface string) (Source, error) {
	fd, err := syscall.Socket(afCAN, syscall.SOCK_RAW, canRaw)
	if err != nil {
		return nil, fmt.Errorf("socketcan: socket: %w", err)
	}

	netIf, err := net.InterfaceByName(iface)
	if err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("socketcan: interface %q: %w", iface, err)
	}

	// struct sockaddr_can layout, bound via bind(2) directly.
	type sockaddrCAN struct {
		Family  uint16
		_       uint16
		Ifindex int32
		Addr    [8]byte
	}
	sa := sockaddrCAN{Family: afCAN, Ifindex: int32(netIf.Index)}
	if _, _, e := syscall.Syscall(syscall.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(&sa)), unsafe.Sizeof(sa)); e != 0 {
		syscall.Close(fd)
		return nil, fmt.Errorf("socketcan: bind %q: %w", iface, e)
	}

	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("socketcan: set nonblock: %w", err)
	}

	return &socketCAN{file: os.NewFile(uintptr(fd), "socketcan:"+iface)}, nil
}

// Receive reads one classical can_frame, skipping error frames. The
// context is honored through short read deadlines.
func (s *socketCAN) Receive(ctx context.Context) (Frame, error) {
	buf := make([]byte, canFrameSize)
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		_ = s.file.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := s.file.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return Frame{}, err
		}
		if n != canFrameSize {
			return Frame{}, fmt.Errorf("socketcan: short read (%d bytes)", n)
		}

		// can_id is a host-order u32 with flag bits on top.
		rawID := binary.LittleEndian.Uint32(buf[0:4])
		if rawID&(canErrFlag|canRtrFlag) != 0 {
			continue
		}

		var f Frame
		if rawID&canEffFlag != 0 {
			// Extended ids never carry BMS frames; surface them anyway and
			// let the classifier reject.
			f.ID = rawID &^ canEffFlag
		} else {
			f.ID = rawID & canSffMask
		}
		f.Len = buf[4]
		if f.Len > 8 {
			f.Len = 8
		}
		copy(f.Data[:], buf[8:8+f.Len])
		return f, nil
	}
}

func (s *socketCAN) Close() error {
	return s.file.Close()
}
