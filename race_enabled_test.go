//go:build race

package csrgo

// raceEnabled is set when testing with -race, where sync.Pool drops
// objects at random.
const raceEnabled = true
