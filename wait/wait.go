// Package wait provides the wait strategies used by the ring buffer to park
// producers when the buffer is full and the drain loop when it is empty.
//
// Strategies trade CPU for latency:
//   - Block, LiteBlock, Timeout: park on a monitor, lowest CPU
//   - Sleep, Park: spin briefly then sleep
//   - Yielding, BusySpin: never park, lowest latency, burns a core
//   - PhasedBackoff: spin, then yield, then fall back to another strategy
//
// Strategies are built by name so they can be selected from configuration:
//
//	s, err := wait.New("PhasedBackoff", "10", "20", "MILLISECONDS", "Block")
//	if err != nil {
//	    return err // errors.Is(err, wait.ErrInvalidParam) or wait.ErrUnknownStrategy
//	}
package wait

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Factory errors
var (
	ErrUnknownStrategy = errors.New("unknown wait strategy")
	ErrInvalidParam    = errors.New("invalid wait strategy parameter")
)

// Strategy governs how a goroutine waits for a ring buffer resource.
//
// Wait blocks until cond reports true. An implementation may return early
// (with the current value of cond) so that callers can re-check liveness,
// callers are therefore expected to loop. Signal wakes every goroutine
// parked in Wait after the state observed by cond has changed.
//
// All implementations are safe for concurrent use.
type Strategy interface {
	Wait(cond func() bool) bool
	Signal()
	Name() string
}

// Strategy names accepted by New.
const (
	NameBlock         = "Block"
	NameBusySpin      = "BusySpin"
	NameLiteBlock     = "LiteBlock"
	NamePark          = "Park"
	NameSleep         = "Sleep"
	NameTimeout       = "Timeout"
	NamePhasedBackoff = "PhasedBackoff"
	NameYielding      = "Yielding"
)

// Names returns the recognized strategy names.
func Names() []string {
	return []string{
		NameBlock, NameBusySpin, NameLiteBlock, NamePark,
		NameSleep, NameTimeout, NamePhasedBackoff, NameYielding,
	}
}

// New creates a strategy from its name and string parameters.
//
// Names are matched case-insensitively and an optional "WaitStrategy"
// suffix is accepted, so "block" and "BlockWaitStrategy" both select Block.
//
// Malformed or out-of-range parameters fail with ErrInvalidParam instead of
// falling back to defaults. PhasedBackoff builds its fallback through New,
// so an invalid nested strategy fails the outer construction.
func New(name string, params ...string) (Strategy, error) {
	canonical := canonicalName(name)
	switch canonical {
	case NameBlock:
		if err := noParams(canonical, params); err != nil {
			return nil, err
		}
		return NewBlock(), nil
	case NameBusySpin:
		if err := noParams(canonical, params); err != nil {
			return nil, err
		}
		return NewBusySpin(), nil
	case NameLiteBlock:
		if err := noParams(canonical, params); err != nil {
			return nil, err
		}
		return NewLiteBlock(), nil
	case NameYielding:
		if err := noParams(canonical, params); err != nil {
			return nil, err
		}
		return NewYielding(), nil
	case NamePark:
		return newParkFromParams(params)
	case NameSleep:
		return newSleepFromParams(params)
	case NameTimeout:
		return newTimeoutFromParams(params)
	case NamePhasedBackoff:
		return newPhasedFromParams(params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// ParseParams splits a comma-separated parameter list, trimming blanks and
// dropping empty entries.
func ParseParams(csv string) []string {
	var out []string
	for _, p := range strings.Split(csv, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func canonicalName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimSuffix(n, "waitstrategy")
	for _, known := range Names() {
		if strings.ToLower(known) == n {
			return known
		}
	}
	return ""
}

func noParams(name string, params []string) error {
	if len(params) > 0 {
		return fmt.Errorf("%w: %s takes no parameters, got %d", ErrInvalidParam, name, len(params))
	}
	return nil
}

func newParkFromParams(params []string) (Strategy, error) {
	switch len(params) {
	case 0:
		return NewPark(DefaultParkInterval), nil
	case 1:
		n, err := positiveInt(NamePark, "parkNanos", params[0])
		if err != nil {
			return nil, err
		}
		return NewPark(time.Duration(n)), nil
	default:
		return nil, fmt.Errorf("%w: %s takes at most 1 parameter, got %d", ErrInvalidParam, NamePark, len(params))
	}
}

func newSleepFromParams(params []string) (Strategy, error) {
	switch len(params) {
	case 0:
		return NewSleep(DefaultSleepRetries), nil
	case 1:
		n, err := positiveInt(NameSleep, "retries", params[0])
		if err != nil {
			return nil, err
		}
		return NewSleep(int(n)), nil
	default:
		return nil, fmt.Errorf("%w: %s takes at most 1 parameter, got %d", ErrInvalidParam, NameSleep, len(params))
	}
}

func newTimeoutFromParams(params []string) (Strategy, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("%w: %s requires timeoutValue and timeUnit, got %d parameters",
			ErrInvalidParam, NameTimeout, len(params))
	}
	d, err := durationParam(NameTimeout, "timeoutValue", params[0], params[1])
	if err != nil {
		return nil, err
	}
	return NewTimeout(d), nil
}

func newPhasedFromParams(params []string) (Strategy, error) {
	if len(params) < 4 {
		return nil, fmt.Errorf("%w: %s requires spinTimeout, yieldTimeout, timeUnit and fallbackStrategyName, got %d parameters",
			ErrInvalidParam, NamePhasedBackoff, len(params))
	}
	spin, err := durationParam(NamePhasedBackoff, "spinTimeout", params[0], params[2])
	if err != nil {
		return nil, err
	}
	yield, err := durationParam(NamePhasedBackoff, "yieldTimeout", params[1], params[2])
	if err != nil {
		return nil, err
	}
	fallback, err := New(params[3], params[4:]...)
	if err != nil {
		return nil, fmt.Errorf("%s fallback: %w", NamePhasedBackoff, err)
	}
	return NewPhasedBackoff(spin, yield, fallback), nil
}

func positiveInt(strategy, param, raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s %q is not an integer", ErrInvalidParam, strategy, param, raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %s %s must be > 0, got %d", ErrInvalidParam, strategy, param, n)
	}
	return n, nil
}

func durationParam(strategy, param, rawValue, rawUnit string) (time.Duration, error) {
	n, err := positiveInt(strategy, param, rawValue)
	if err != nil {
		return 0, err
	}
	unit, err := ParseTimeUnit(rawUnit)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", strategy, param, err)
	}
	return time.Duration(n) * unit, nil
}

// ParseTimeUnit converts a time unit name to its duration.
// Accepts NANOSECONDS, MICROSECONDS, MILLISECONDS, SECONDS, MINUTES, HOURS
// (any case) and the short forms ns, us, ms, s, m, h.
func ParseTimeUnit(unit string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "nanoseconds", "ns":
		return time.Nanosecond, nil
	case "microseconds", "us", "µs":
		return time.Microsecond, nil
	case "milliseconds", "ms":
		return time.Millisecond, nil
	case "seconds", "s":
		return time.Second, nil
	case "minutes", "m":
		return time.Minute, nil
	case "hours", "h":
		return time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: unknown time unit %q", ErrInvalidParam, unit)
	}
}
