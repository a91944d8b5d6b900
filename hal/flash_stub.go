package hal

// stubFlash stands in for a controller that could not be brought up; every
// call reports why.
type stubFlash struct {
	err error
}

func (s stubFlash) cause() error {
	if s.err != nil {
		return s.err
	}
	return ErrNotImplemented
}

func (stubFlash) PageBytes() uint32 { return 0 }
func (stubFlash) SizeBytes() uint32 { return 0 }

func (s stubFlash) Init() error {
	return s.cause()
}
func (s stubFlash) Erase(_, _ uint32) error {
	return s.cause()
}
func (s stubFlash) VerifyErase(_, _ uint32) error {
	return s.cause()
}
func (s stubFlash) Program(_ uint32, _ []byte) error {
	return s.cause()
}
func (s stubFlash) VerifyProgram(_ uint32, _ []byte) error {
	return s.cause()
}
func (s stubFlash) Read(_ uint32, _ []byte) error {
	return s.cause()
}
