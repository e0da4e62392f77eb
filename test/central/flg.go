package main

import (
	"github.com/urfave/cli"
)

var (
	flgConfig            = cli.StringFlag{Name: "config, c", Usage: "YAML config file (default ~/.config/blecentral/config.yaml)"}
	flgAdapter           = cli.StringFlag{Name: "adapter, a", Usage: "BlueZ adapter, e.g. hci0"}
	flgTester            = cli.StringFlag{Name: "tester, t", Usage: "Address of the peer the connect command dials"}
	flgTesterType        = cli.StringFlag{Name: "tester-type", Usage: "Tester address type (public / random)"}
	flgAuthPolicy        = cli.StringFlag{Name: "auth-policy", Usage: "Answer authorization requests automatically or prompt (auto / prompt)"}
	flgClearOnDisconnect = cli.BoolFlag{Name: "clear-on-disconnect", Usage: "Forget the connection handle when the link drops"}
	flgAutoConnect       = cli.BoolFlag{Name: "auto-connect", Usage: "Connect to the tester as soon as the stack is up"}
	flgOOB               = cli.BoolFlag{Name: "oob", Usage: "Start with OOB data available"}
	flgNoScan            = cli.BoolFlag{Name: "no-scan", Usage: "Do not scan, suppressing advertising reports"}
	flgFormat            = cli.StringFlag{Name: "format, f", Usage: "Report format (text / json), json moves menu and status text to stderr"}
	flgLogLevel          = cli.StringFlag{Name: "log-level, l", Usage: "Log level (debug / info / warn / error)"}
	flgLogFile           = cli.StringFlag{Name: "log-file", Usage: "Append logs to this file instead of stderr"}
)
