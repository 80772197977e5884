package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vocdoni/confidential-fundraiser/config"
	"github.com/vocdoni/confidential-fundraiser/log"
)

var (
	conf *config.Config

	flagNode     string
	flagPrivKey  string
	flagLogLevel string
	flagEnvFiles []string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagNode, "node", "", "node API URL ($FUNDRAISER_NODEURL)")
	pf.StringVar(&flagPrivKey, "privkey", "", "hex private key of the account signing requests ($FUNDRAISER_PRIVKEY)")
	pf.StringVar(&flagLogLevel, "loglevel", "", "log level: debug, info, warn or error ($FUNDRAISER_LOGLEVEL)")
	pf.StringSliceVar(&flagEnvFiles, "env", nil, "env files to read (default .env, .env.local)")

	rootCmd.AddCommand(nodeCmd, keygenCmd, mintCmd, approveCmd, configureCmd,
		contributeCmd, closeCmd, statusCmd, balanceCmd, decryptCmd, watchCmd)
}

var rootCmd = &cobra.Command{
	Use:           "fundraiser",
	Short:         "Confidential fundraiser node and client",
	Long:          "Runs a confidential fundraiser node or drives one: contributions travel encrypted and only their owners can read them.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if conf, err = config.Load(flagEnvFiles...); err != nil {
			return err
		}
		if flagNode != "" {
			conf.NodeURL = flagNode
		}
		if flagPrivKey != "" {
			conf.PrivateKey = flagPrivKey
		}
		if flagLogLevel != "" {
			conf.LogLevel = flagLogLevel
		}
		output := conf.LogOutput
		if cmd.Name() != nodeCmd.Name() {
			// client commands print their results on stdout
			output = "stderr"
			if flagLogLevel == "" {
				conf.LogLevel = log.LogLevelWarn
			}
		}
		return log.Init(conf.LogLevel, output, nil)
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.HelpFunc()(cmd, args)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
