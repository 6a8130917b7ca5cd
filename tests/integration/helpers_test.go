//go:build integration
// +build integration

package integration

import "time"

const (
	waitFor = 2 * time.Second
	tick    = 20 * time.Millisecond
)

func zero() time.Time { return time.Time{} }
