package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/temoto/loragate/internal/state"
	"github.com/temoto/loragate/internal/tele"
	"github.com/temoto/loragate/log2"
)

var BuildVersion string = "unknown" // set by ldflags -X

var log = log2.NewStderr(log2.LDebug)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "loragate",
		Short:         "Serial gateway for LoRa sensor nodes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if isatty.IsTerminal(os.Stderr.Fd()) {
				log.SetFlags(log2.LInteractiveFlags)
			} else {
				// assume systemd journal, it has own timestamps
				log.SetFlags(log2.LServiceFlags)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMain(configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "loragate.hcl", "config file path")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Read and validate config, print effective values",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := state.ReadConfig(log, state.NewOsFullReader(), configPath)
			if err != nil {
				return err
			}
			if err = config.Validate(); err != nil {
				return err
			}
			fmt.Printf("serial=%+v\n", config.SerialConfig())
			fmt.Printf("nodes=%v\n", config.NodeIds())
			fmt.Printf("thresholds=%+v\n", config.DefaultTarget())
			fmt.Printf("persist=%+v http=%+v\n", config.Persist, config.Http)
			return nil
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(BuildVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}

func runMain(configPath string) error {
	log.Infof("loragate version=%s", BuildVersion)

	ctx, g := state.NewContext(log, tele.New())
	g.BuildVersion = BuildVersion
	config := state.MustReadConfig(log, state.NewOsFullReader(), configPath)
	g.MustInit(ctx, config)

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigch
		log.Infof("signal=%v, stopping", sig)
		sdnotify(daemon.SdNotifyStopping)
		g.Stop()
	}()

	sdnotify(daemon.SdNotifyReady)
	log.Infof("init complete, running")
	err := g.Run(ctx)
	g.StopWait(5 * time.Second)
	return err
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Errorf("sdnotify: %v", errors.ErrorStack(err))
	}
	return ok
}
