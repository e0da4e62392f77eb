package bluez

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/blecentral"
)

// Option configures a Stack.
type Option func(*Stack) error

// OptScan enables LE discovery on start, which produces advertising reports.
func OptScan(enable bool) Option {
	return func(s *Stack) error {
		s.scan = enable
		return nil
	}
}

// OptLogger replaces the component logger.
func OptLogger(l blecentral.Logger) Option {
	return func(s *Stack) error {
		if l == nil {
			return errors.New("nil logger")
		}
		s.logger = l
		return nil
	}
}

// OptAgentTimeout bounds how long an agent request waits for the user.
func OptAgentTimeout(d time.Duration) Option {
	return func(s *Stack) error {
		if d <= 0 {
			return errors.Errorf("invalid agent timeout %v", d)
		}
		s.agentTimeout = d
		return nil
	}
}

// OptGattTimeout bounds the wait for ServicesResolved during discovery.
func OptGattTimeout(d time.Duration) Option {
	return func(s *Stack) error {
		if d <= 0 {
			return errors.Errorf("invalid gatt timeout %v", d)
		}
		s.gattTimeout = d
		return nil
	}
}
