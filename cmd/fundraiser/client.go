package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/vocdoni/confidential-fundraiser/api"
	"github.com/vocdoni/confidential-fundraiser/api/client"
	"github.com/vocdoni/confidential-fundraiser/bridge"
	"github.com/vocdoni/confidential-fundraiser/crypto/ethereum"
	"github.com/vocdoni/confidential-fundraiser/types"
)

var errMissingSigner = errors.New("no private key: use --privkey or $FUNDRAISER_PRIVKEY")

var (
	approveFor      time.Duration
	configureFor    time.Duration
	decryptTarget   string
	decryptValidity time.Duration
	balanceDecrypt  bool
	statusDecrypt   bool
	watchFrom       uint64
	watchInterval   time.Duration
)

func init() {
	approveCmd.Flags().DurationVar(&approveFor, "for", 24*time.Hour, "how long the ledger may move your tokens")
	configureCmd.Flags().DurationVar(&configureFor, "duration", 7*24*time.Hour, "how long the campaign accepts contributions")
	decryptCmd.Flags().StringVar(&decryptTarget, "contract", "ledger", "contract granting access to the handle: ledger, token or an address")
	decryptCmd.Flags().DurationVar(&decryptValidity, "validity", bridge.DefaultValidity, "validity window of the decryption authorization")
	balanceCmd.Flags().BoolVar(&balanceDecrypt, "decrypt", false, "decrypt the balance (only for your own account)")
	statusCmd.Flags().BoolVar(&statusDecrypt, "decrypt", false, "decrypt the campaign total (owner only)")
	watchCmd.Flags().Uint64Var(&watchFrom, "from", 1, "first event sequence number")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "polling interval")
}

// session bundles what client commands need.
type session struct {
	cli    *client.HTTPclient
	info   *api.InfoResponse
	signer *ethereum.SignKeys
	bridge *bridge.Client
}

// newSession connects to the node. If needSigner is set the private key
// must be configured.
func newSession(cmd *cobra.Command, needSigner bool) (*session, error) {
	s := &session{}
	if conf.PrivateKey != "" {
		s.signer = ethereum.NewSignKeys()
		if err := s.signer.AddHexKey(conf.PrivateKey); err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
	} else if needSigner {
		return nil, errMissingSigner
	}
	var err error
	if s.cli, err = client.New(conf.NodeURL); err != nil {
		return nil, fmt.Errorf("cannot reach node %s: %w", conf.NodeURL, err)
	}
	if s.info, err = s.cli.Info(cmd.Context()); err != nil {
		return nil, err
	}
	s.bridge = bridge.New(s.cli, nil)
	return s, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new account key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		k := ethereum.NewSignKeys()
		if err := k.Generate(); err != nil {
			return err
		}
		_, priv := k.HexString()
		fmt.Printf("address: %s\nprivkey: %s\n", k.AddressString(), priv)
		return nil
	},
}

var mintCmd = &cobra.Command{
	Use:   "mint <amount>",
	Short: "Mint confidential tokens to your account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := types.ParseAmount(args[0])
		if err != nil {
			return err
		}
		s, err := newSession(cmd, true)
		if err != nil {
			return err
		}
		h, err := s.cli.Mint(cmd.Context(), s.signer, amount)
		if err != nil {
			return err
		}
		fmt.Printf("minted %s to %s, balance handle %s\n", types.FormatAmount(amount), s.signer.AddressString(), h)
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Allow the ledger to move your tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, true)
		if err != nil {
			return err
		}
		until := uint64(time.Now().Add(approveFor).Unix())
		if err := s.cli.SetOperator(cmd.Context(), s.signer, s.info.Ledger, until); err != nil {
			return err
		}
		fmt.Printf("ledger %s approved until %s\n", s.info.Ledger.Hex(), time.Unix(int64(until), 0).UTC())
		return nil
	},
}

var configureCmd = &cobra.Command{
	Use:   "configure <name> <target>",
	Short: "Start a new campaign (owner only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := types.ParseAmount(args[1])
		if err != nil {
			return err
		}
		s, err := newSession(cmd, true)
		if err != nil {
			return err
		}
		end := uint64(time.Now().Add(configureFor).Unix())
		c, err := s.cli.Configure(cmd.Context(), s.signer, args[0], target, end)
		if err != nil {
			return err
		}
		return printJSON(c)
	},
}

var contributeCmd = &cobra.Command{
	Use:   "contribute <amount>",
	Short: "Contribute an encrypted amount to the current campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, true)
		if err != nil {
			return err
		}
		if err := s.bridge.Init(cmd.Context()); err != nil {
			return err
		}
		input, err := s.bridge.EncryptAmount(args[0], s.info.Ledger, s.signer.Address())
		if err != nil {
			return err
		}
		resp, err := s.cli.Contribute(cmd.Context(), s.signer, input)
		if err != nil {
			return err
		}
		fmt.Printf("contribution accepted in campaign %d, your total handle is %s\n", resp.CampaignID, resp.Handle)
		return nil
	},
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the current campaign and collect the funds (owner only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, true)
		if err != nil {
			return err
		}
		resp, err := s.cli.CloseCampaign(cmd.Context(), s.signer)
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current campaign",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, statusDecrypt)
		if err != nil {
			return err
		}
		snap, err := s.cli.Campaign(cmd.Context())
		if err != nil {
			return err
		}
		if err := printJSON(snap); err != nil {
			return err
		}
		if !statusDecrypt {
			return nil
		}
		if err := s.bridge.Init(cmd.Context()); err != nil {
			return err
		}
		total, err := s.bridge.DecryptAmount(cmd.Context(), snap.Total, s.info.Ledger, s.signer)
		if err != nil {
			return err
		}
		fmt.Printf("raised %s of %s\n", total, types.FormatAmount(snap.Target))
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Show the encrypted token balance of an account",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, balanceDecrypt || len(args) == 0)
		if err != nil {
			return err
		}
		var holder common.Address
		switch {
		case len(args) == 1 && common.IsHexAddress(args[0]):
			holder = common.HexToAddress(args[0])
		case len(args) == 1:
			return fmt.Errorf("invalid address %q", args[0])
		default:
			holder = s.signer.Address()
		}
		h, err := s.cli.Balance(cmd.Context(), holder)
		if err != nil {
			return err
		}
		fmt.Printf("balance handle of %s: %s\n", holder.Hex(), h)
		if !balanceDecrypt {
			return nil
		}
		if err := s.bridge.Init(cmd.Context()); err != nil {
			return err
		}
		amount, err := s.bridge.DecryptAmount(cmd.Context(), h, s.info.Token, s.signer)
		if err != nil {
			return err
		}
		fmt.Printf("balance: %s\n", amount)
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <handle>",
	Short: "Decrypt a handle you have access to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := types.HandleFromHex(args[0])
		if err != nil {
			return err
		}
		s, err := newSession(cmd, true)
		if err != nil {
			return err
		}
		var contract common.Address
		switch {
		case decryptTarget == "ledger":
			contract = s.info.Ledger
		case decryptTarget == "token":
			contract = s.info.Token
		case common.IsHexAddress(decryptTarget):
			contract = common.HexToAddress(decryptTarget)
		default:
			return fmt.Errorf("invalid contract %q", decryptTarget)
		}
		s.bridge.SetValidity(decryptValidity)
		if err := s.bridge.Init(cmd.Context()); err != nil {
			return err
		}
		amount, err := s.bridge.DecryptAmount(cmd.Context(), h, contract, s.signer)
		if err != nil {
			return err
		}
		fmt.Println(amount)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print ledger and token events as they happen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, false)
		if err != nil {
			return err
		}
		for ev := range s.cli.MonitorEvents(cmd.Context(), watchInterval, watchFrom) {
			fmt.Println(ev.String())
		}
		return nil
	},
}
