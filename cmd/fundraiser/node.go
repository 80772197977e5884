package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/service"
)

var (
	nodeDataDir string
	nodeDBType  string
	nodeHost    string
	nodePort    int
	nodeOwner   string
)

func init() {
	f := nodeCmd.Flags()
	f.StringVar(&nodeDataDir, "datadir", "", "data directory ($FUNDRAISER_DATADIR)")
	f.StringVar(&nodeDBType, "dbtype", "", "database type: pebble or memory ($FUNDRAISER_DBTYPE)")
	f.StringVar(&nodeHost, "host", "", "API listen host ($FUNDRAISER_HOST)")
	f.IntVar(&nodePort, "port", 0, "API listen port ($FUNDRAISER_PORT)")
	f.StringVar(&nodeOwner, "owner", "", "address of the campaign owner ($FUNDRAISER_OWNER)")
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a fundraiser node",
	Long:  "Runs the campaign ledger, the confidential token, the decryption gateway and the HTTP API until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("datadir") {
			conf.DataDir = nodeDataDir
		}
		if cmd.Flags().Changed("dbtype") {
			conf.DBType = nodeDBType
		}
		if cmd.Flags().Changed("host") {
			conf.Host = nodeHost
		}
		if cmd.Flags().Changed("port") {
			conf.Port = nodePort
		}
		if cmd.Flags().Changed("owner") {
			if !common.IsHexAddress(nodeOwner) {
				return fmt.Errorf("invalid owner address %q", nodeOwner)
			}
			conf.OwnerAddress = common.HexToAddress(nodeOwner)
		}

		node := service.NewNode(conf, nil)
		if err := node.Start(cmd.Context()); err != nil {
			return err
		}
		defer node.Stop()
		<-cmd.Context().Done()
		log.Infow("shutting down")
		return nil
	},
}
