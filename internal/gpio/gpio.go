// Package gpio provides GPIO input reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// NumSlots is the number of book slot sense lines.
const NumSlots = 5

// Default pin assignments (BCM numbering). Slot pins hold the reed/IR
// sense lines left to right; the touch pad sits on its own line.
var DefaultSlotPins = [NumSlots]int{5, 6, 13, 19, 26}

// DefaultTouchPin is the BCM pin for the capacitive touch input.
const DefaultTouchPin = 21

// Sample is one reading of every input, already in logical form.
type Sample struct {
	Slots [NumSlots]bool // true = book present
	Touch bool           // true = pad touched
}

// Reader reads all input states.
type Reader interface {
	// Read returns the logical states of the slot and touch lines.
	// Raw slot values are inverted: raw active = logical absent.
	Read() (Sample, error)

	// Close releases GPIO resources.
	Close() error
}
