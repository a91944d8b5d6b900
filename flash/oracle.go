package flash

import (
	"errors"

	"flashcore/hal"
)

// AccessPolicy decides what the oracle answers when the controller's erase
// verification itself fails (neither "erased" nor "not erased").
type AccessPolicy uint8

const (
	// AssumeAccessible treats an unverifiable region as programmed. This is
	// the default: a false "erased" answer would make Read and the write
	// merge replace real data with fill bytes.
	AssumeAccessible AccessPolicy = iota
	// AssumeErased treats an unverifiable region as erased, trading possible
	// fill-pattern reads for never touching memory that might fault.
	AssumeErased
)

func (p AccessPolicy) String() string {
	if p == AssumeErased {
		return "assume-erased"
	}
	return "assume-accessible"
}

// ParseAccessPolicy accepts the names produced by String.
func ParseAccessPolicy(s string) (AccessPolicy, error) {
	switch s {
	case "", "assume-accessible":
		return AssumeAccessible, nil
	case "assume-erased":
		return AssumeErased, nil
	default:
		return AssumeAccessible, ErrParam
	}
}

// IsAccessible reports whether [addr, addr+length) is safe to read, that is,
// not fully erased. It has no side effects. Before Init, and on a driver
// without a controller, the AccessPolicy answers.
func (d *Driver) IsAccessible(addr, length uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	erased, _ := d.erasedLocked(addr, length)
	return !erased
}

// IsErased is the negation of IsAccessible.
func (d *Driver) IsErased(addr, length uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	erased, _ := d.erasedLocked(addr, length)
	return erased
}

// erasedLocked runs the hardware erase verification. verr is non-nil when the
// answer came from the policy rather than the hardware.
func (d *Driver) erasedLocked(addr, length uint32) (erased bool, verr error) {
	if !d.ready {
		return d.opts.Policy == AssumeErased, ErrNotInitialized
	}
	err := d.hw.VerifyErase(addr, length)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, hal.ErrNotErased):
		return false, nil
	default:
		return d.opts.Policy == AssumeErased, err
	}
}
