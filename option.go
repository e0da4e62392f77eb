package blecentral

import "io"

// HarnessOption is implemented by the harness to accept configuration options.
type HarnessOption interface {
	SetConsole(io.Writer) error
	SetLogger(Logger) error
	SetDeviceName(string) error
	SetSecurityPolicy(SecurityPolicy) error
	SetTester(Addr) error
	SetConnParams(ConnParams) error
	SetAuthorizationPolicy(AuthPolicy) error
	SetClearOnDisconnect(bool) error
	SetAutoConnect(bool) error
	SetReportFormat(string) error
}

// An Option is a configuration function, which configures the harness.
type Option func(HarnessOption) error

// OptConsole sets where menus, prompts and reports are printed.
func OptConsole(w io.Writer) Option {
	return func(opt HarnessOption) error {
		return opt.SetConsole(w)
	}
}

// OptLogger overrides the package logger.
func OptLogger(l Logger) Option {
	return func(opt HarnessOption) error {
		return opt.SetLogger(l)
	}
}

// OptDeviceName sets the name shown in the menu header.
func OptDeviceName(name string) Option {
	return func(opt HarnessOption) error {
		return opt.SetDeviceName(name)
	}
}

// OptSecurityPolicy overrides the start-up pairing configuration.
func OptSecurityPolicy(p SecurityPolicy) Option {
	return func(opt HarnessOption) error {
		return opt.SetSecurityPolicy(p)
	}
}

// OptTester sets the peer the connect command dials.
func OptTester(a Addr) Option {
	return func(opt HarnessOption) error {
		return opt.SetTester(a)
	}
}

// OptConnParams overrides default connection parameters. The peer
// address is always taken from the tester.
func OptConnParams(p ConnParams) Option {
	return func(opt HarnessOption) error {
		return opt.SetConnParams(p)
	}
}

// OptAuthorizationPolicy selects automatic or prompted authorization.
func OptAuthorizationPolicy(p AuthPolicy) Option {
	return func(opt HarnessOption) error {
		return opt.SetAuthorizationPolicy(p)
	}
}

// OptClearOnDisconnect resets the handle and session state when the link drops.
func OptClearOnDisconnect(clear bool) Option {
	return func(opt HarnessOption) error {
		return opt.SetClearOnDisconnect(clear)
	}
}

// OptAutoConnect connects to the tester once the stack is ready.
func OptAutoConnect(auto bool) Option {
	return func(opt HarnessOption) error {
		return opt.SetAutoConnect(auto)
	}
}

// OptReportFormat selects "text" or "json" discovery output.
func OptReportFormat(format string) Option {
	return func(opt HarnessOption) error {
		return opt.SetReportFormat(format)
	}
}
