//go:build !giouring
// +build !giouring

package completionring

import "fmt"

// NewGiouringRing is available when built with -tags giouring.
func NewGiouringRing(config Config) (Ring, error) {
	return nil, fmt.Errorf("completionring: giouring not enabled; build with -tags giouring")
}
