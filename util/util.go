// Package util contains misc internal utilities.
package util

import (
	"errors"
	"net"
	"strings"
	"time"
)

// UintSliceContains returns true if value is in slice
func UintSliceContains(slice []uint, value uint) bool {
	for _, v := range slice {
		if v == value {
			return true
		}
	}
	return false
}

// IntSliceContains returns true if value is in slice
func IntSliceContains(slice []int, value int) bool {
	for _, v := range slice {
		if v == value {
			return true
		}
	}
	return false
}

// StrSliceContains returns true if value is in slice
func StrSliceContains(slice []string, value string) bool {
	for _, v := range slice {
		if v == value {
			return true
		}
	}
	return false
}

// MergeErrors merges a slice of errors into a single error, skipping nils.
// If all of the errors are nil, the result is nil.
func MergeErrors(errs []error) error {
	strs := []string{}
	for _, e := range errs {
		if e != nil {
			strs = append(strs, e.Error())
		}
	}
	if len(strs) == 0 {
		return nil
	}
	return errors.New(strings.Join(strs, ";"))
}

// SecsToDuration converts a floating point number of seconds to a Duration
func SecsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Clamp limits x to the range [low, high]
func Clamp(x, low, high float64) float64 {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

// TCPSetup opens a new TCP connection and sets a timeout on connect, read, and write
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	return conn, nil
}
