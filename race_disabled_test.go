//go:build !race

package csrgo

const raceEnabled = false
