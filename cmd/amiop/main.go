package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/ini.v1"

	"amiop/ami"
	"amiop/config"
	"amiop/console"
	"amiop/logging"
	"amiop/state"
)

var (
	flagConfig   string
	flagHost     string
	flagPort     int
	flagUsername string
	flagSecret   string
)

var rootCmd = &cobra.Command{
	Use:          "amiop",
	Short:        "Bridge-aware AMI call control console",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "amiop.ini", "path to the ini configuration file")
	rootCmd.Flags().StringVar(&flagHost, "host", "", "AMI host (overrides config)")
	rootCmd.Flags().IntVar(&flagPort, "port", 0, "AMI port (overrides config)")
	rootCmd.Flags().StringVar(&flagUsername, "username", "", "AMI username (overrides config)")
	rootCmd.Flags().StringVar(&flagSecret, "secret", "", "AMI secret (overrides config)")
}

func run(cmd *cobra.Command, args []string) error {
	iniFile, err := ini.LooseLoad(flagConfig)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	cfg, err := config.Load(iniFile)
	if err != nil {
		cfg, err = recoverWithFlags(iniFile, err)
		if err != nil {
			return err
		}
	}
	cfg.Override(flagHost, flagPort, flagUsername, flagSecret)

	if err := logging.Init(iniFile, "amiop.log"); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Close()
	coreLog := logging.Named("core")

	client, err := ami.Dial(cfg.Host(), cfg.Port(), logging.Named("ami"))
	if err != nil {
		coreLog.Errorf("failed to connect: %v", err)
		return err
	}
	defer client.Close()
	client.SetActionTimeout(cfg.ActionTimeout())

	if err := client.Login(cfg.Username(), cfg.Secret()); err != nil {
		coreLog.Errorf("AMI login failed: %v", err)
		return err
	}

	store := state.NewStore(logging.Named("state"))

	// Reader and consumer: events flow conn -> reader -> queue -> store.
	go client.Run()
	go func() {
		for msg := range client.Events() {
			store.Apply(msg)
		}
	}()

	// Close the connection on SIGINT/SIGTERM so the blocked reader unwinds.
	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		_ = client.Close()
	}()

	if err := client.Resync(); err != nil {
		coreLog.Warnf("initial resync failed: %v", err)
	}

	console.New(client, store, cfg, os.Stdin, os.Stdout).Run()

	coreLog.Info("performing a graceful shutdown...")
	_ = client.Logoff()
	return nil
}

// recoverWithFlags retries validation when required credentials are only
// supplied on the command line.
func recoverWithFlags(iniFile *ini.File, loadErr error) (*config.Config, error) {
	if flagUsername == "" || flagSecret == "" {
		return nil, loadErr
	}
	iniFile.Section("ami").Key("username").SetValue(flagUsername)
	iniFile.Section("ami").Key("secret").SetValue(flagSecret)
	return config.Load(iniFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
