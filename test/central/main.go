package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/config"
	"github.com/rigado/blecentral/console"
	"github.com/rigado/blecentral/harness"
	"github.com/rigado/blecentral/linux/bluez"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()

	app.Name = "central"
	app.Usage = "Interactive BLE central for pairing and discovery tests"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		flgConfig,
		flgAdapter,
		flgTester,
		flgTesterType,
		flgAuthPolicy,
		flgClearOnDisconnect,
		flgAutoConnect,
		flgOOB,
		flgNoScan,
		flgFormat,
		flgLogLevel,
		flgLogFile,
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "central: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	explicit := path != ""
	if !explicit {
		path = config.DefaultConfigPath()
	}

	var cfg *config.Config
	var err error
	if explicit {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOrDefault(path)
	}
	if err != nil {
		return nil, err
	}

	if c.IsSet("adapter") {
		cfg.Adapter = c.String("adapter")
	}
	if c.IsSet("tester") {
		cfg.Tester.Address = c.String("tester")
	}
	if c.IsSet("tester-type") {
		cfg.Tester.Type = c.String("tester-type")
	}
	if c.IsSet("auth-policy") {
		cfg.Authorization = c.String("auth-policy")
	}
	if c.IsSet("clear-on-disconnect") {
		cfg.ClearOnDisconnect = c.Bool("clear-on-disconnect")
	}
	if c.IsSet("auto-connect") {
		cfg.AutoConnect = c.Bool("auto-connect")
	}
	if c.IsSet("oob") {
		cfg.Security.OOB = c.Bool("oob")
	}
	if c.IsSet("no-scan") {
		cfg.Scan = !c.Bool("no-scan")
	}
	if c.IsSet("format") {
		cfg.Format = c.String("format")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	return cfg, cfg.Validate()
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return errors.Wrap(err, "config")
	}
	if err := blecentral.SetLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	if path := c.String("log-file"); path != "" {
		f, err := openLogFile(path)
		if err != nil {
			return err
		}
		defer f.Close()
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	stack, err := bluez.Open(cfg.Adapter, bluez.OptScan(cfg.Scan))
	if err != nil {
		return errors.Wrap(err, "can't open stack")
	}
	defer stack.Close()

	h, err := harness.New(stack, append(opts, blecentral.OptConsole(os.Stdout))...)
	if err != nil {
		return errors.Wrap(err, "can't create harness")
	}

	con, err := console.Open(os.Stdin)
	if err != nil {
		return err
	}
	defer con.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return chkErr(h.Run(ctx, con.Keys(ctx)))
}

// openLogFile sends the default logger to path, keeping the console for
// menus and reports.
func openLogFile(path string) (io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "log file")
	}
	blecentral.SetLogOutput(f)
	return f, nil
}

func chkErr(err error) error {
	switch errors.Cause(err) {
	case harness.ErrInterrupted, context.Canceled:
		fmt.Printf("\n(Interrupted)\n")
		return nil
	}
	return err
}
