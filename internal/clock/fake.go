package clock

// Fake is a test double with a directly settable epoch.
type Fake struct {
	Epoch   uint32
	IsValid bool

	lastOut uint32
}

// NewFake creates a Fake at the given epoch, valid by default.
func NewFake(epoch uint32) *Fake {
	return &Fake{Epoch: epoch, IsValid: true}
}

// Now returns the scripted epoch, clamped so it never regresses.
func (f *Fake) Now() uint32 {
	out := f.Epoch
	if out < f.lastOut {
		out = f.lastOut
	}
	f.lastOut = out
	return out
}

// Valid returns the scripted validity.
func (f *Fake) Valid() bool {
	return f.IsValid
}

// Advance moves the fake clock forward by n seconds.
func (f *Fake) Advance(n uint32) {
	f.Epoch += n
}

// Sync applies an epoch with the same validation as Wall.Sync.
func (f *Fake) Sync(epoch uint32) error {
	if epoch <= EpochFloor {
		return ErrInvalidEpoch
	}
	f.Epoch = epoch
	f.IsValid = true
	return nil
}
