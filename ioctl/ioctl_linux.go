package ioctl

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// To decode a hex IOCTL code:
//
// Most architectures use this generic format, but check
// include/ARCH/ioctl.h for specifics, e.g. powerpc
// uses 3 bits to encode read/write and 13 bits for size.
//
//  bits    meaning
//  31-30	00 - no parameters: uses _IO macro
// 	10 - read: _IOR
// 	01 - write: _IOW
// 	11 - read/write: _IOWR
//
//  29-16	size of arguments
//
//  15-8	ascii character supposedly
// 	unique to each driver
//
//  7-0	function #
//
// So for example 0x82187201 is a read with arg length of 0x218,
// character 'r' function 1. Grepping the source reveals this is:
//
// #define VFAT_IOCTL_READDIR_BOTH         _IOR('r', 1, struct dirent [2])
// source: https://www.kernel.org/doc/Documentation/ioctl/ioctl-decoding.txt

const (
	None  = uint8(0x0)
	Write = uint8(0x1)
	Read  = uint8(0x2)
)

// Code is an encoded ioctl request number.
type Code uint32

func NewCode(typ uint8, sz uint16, uniq, fn uint8) Code {
	var code Code
	if typ > Write|Read {
		panic(fmt.Errorf("invalid ioctl code value: %d\n", typ))
	}

	if sz > 2<<14 {
		panic(fmt.Errorf("invalid ioctl size value: %d\n", sz))
	}

	code = code | (Code(typ) << 30)
	code = code | (Code(sz) << 16) // sz has 14bits
	code = code | (Code(uniq) << 8)
	code = code | Code(fn)
	return code
}

// ReadWrite is the _IOWR macro.
func ReadWrite(sz uintptr, uniq, fn uint8) Code {
	return NewCode(Read|Write, uint16(sz), uniq, fn)
}

func (c Code) String() string {
	var dir string
	switch uint8(c >> 30) {
	case None:
		dir = "none"
	case Write:
		dir = "write"
	case Read:
		dir = "read"
	default:
		dir = "read/write"
	}
	return fmt.Sprintf("ioctl %s '%c' 0x%02x (%d bytes)",
		dir, rune(c>>8&0xff), uint32(c&0xff), uint32(c>>16&0x3fff))
}

// Do issues the ioctl, restarting it when interrupted by a signal or
// when the driver asks to try again. The returned error is the raw
// unix.Errno so callers can compare against it.
func Do(fd, cmd, ptr uintptr) error {
	for {
		_, _, errcode := unix.Syscall(unix.SYS_IOCTL, fd, cmd, ptr)
		switch errcode {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return errcode
		}
	}
}
