// Command e2etest runs the demo scenario of the fundraiser end to end: it
// starts an in-memory node, funds two contributors, runs a campaign and
// checks what every party can and cannot decrypt.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-fundraiser/api"
	"github.com/vocdoni/confidential-fundraiser/api/client"
	"github.com/vocdoni/confidential-fundraiser/bridge"
	"github.com/vocdoni/confidential-fundraiser/config"
	"github.com/vocdoni/confidential-fundraiser/crypto/ethereum"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/service"
	"github.com/vocdoni/confidential-fundraiser/types"
)

func main() {
	var (
		nodeURL  string
		logLevel string
		duration time.Duration
	)
	flag.StringVar(&nodeURL, "node", "", "run against an existing node instead of an in-memory one (owner key in $FUNDRAISER_PRIVKEY)")
	flag.StringVar(&logLevel, "loglevel", "warn", "log level")
	flag.DurationVar(&duration, "duration", time.Hour, "campaign duration")
	flag.Parse()
	if err := log.Init(logLevel, "stderr", nil); err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	start := time.Now()
	if err := run(ctx, nodeURL, duration); err != nil {
		log.Errorw(err, "e2e test failed")
		os.Exit(1)
	}
	fmt.Println("e2e test passed in", time.Since(start))
}

func newAccount() *ethereum.SignKeys {
	k := ethereum.NewSignKeys()
	if err := k.Generate(); err != nil {
		log.Fatal(err)
	}
	return k
}

func run(ctx context.Context, nodeURL string, duration time.Duration) error {
	owner := newAccount()
	if nodeURL == "" {
		conf := config.Default()
		conf.DBType = "memory"
		conf.Host = "127.0.0.1"
		conf.Port = 0
		conf.OwnerAddress = owner.Address()
		node := service.NewNode(conf, nil)
		if err := node.Start(ctx); err != nil {
			return err
		}
		defer node.Stop()
		nodeURL = node.URL()
	} else {
		conf, err := config.Load()
		if err != nil {
			return err
		}
		if err := owner.AddHexKey(conf.PrivateKey); err != nil {
			return fmt.Errorf("owner key: %w", err)
		}
	}

	cli, err := client.New(nodeURL)
	if err != nil {
		return err
	}
	info, err := cli.Info(ctx)
	if err != nil {
		return err
	}
	enc := bridge.New(cli, nil)
	if err := enc.Init(ctx); err != nil {
		return err
	}

	end := uint64(time.Now().Add(duration).Unix())
	campaign, err := cli.Configure(ctx, owner, "Demo", 2_000_000, end)
	if err != nil {
		return err
	}
	log.Infow("campaign configured", "id", campaign.ID)

	alice, bob := newAccount(), newAccount()
	contributions := []struct {
		who    *ethereum.SignKeys
		amount string
	}{
		{alice, "1.25"},
		{bob, "0.5"},
		{alice, "0.25"},
	}
	for _, k := range []*ethereum.SignKeys{alice, bob} {
		if _, err := cli.Mint(ctx, k, 10_000_000); err != nil {
			return err
		}
		if err := cli.SetOperator(ctx, k, info.Ledger, end); err != nil {
			return err
		}
	}
	totals := map[*ethereum.SignKeys]types.Handle{}
	for _, c := range contributions {
		input, err := enc.EncryptAmount(c.amount, info.Ledger, c.who.Address())
		if err != nil {
			return err
		}
		resp, err := cli.Contribute(ctx, c.who, input)
		if err != nil {
			return err
		}
		totals[c.who] = resp.Handle
	}

	if err := expect(ctx, enc, totals[alice], info.Ledger, alice, "1.5"); err != nil {
		return err
	}
	if err := expect(ctx, enc, totals[bob], info.Ledger, bob, "0.5"); err != nil {
		return err
	}
	if _, err := enc.Decrypt(ctx, totals[alice], info.Ledger, bob); !errors.Is(err, api.ErrHandleNotAllowed) {
		return fmt.Errorf("bob decrypted the total of alice: %v", err)
	}

	snap, err := cli.Campaign(ctx)
	if err != nil {
		return err
	}
	if err := expect(ctx, enc, snap.Total, info.Ledger, owner, "2"); err != nil {
		return err
	}
	if _, err := enc.Decrypt(ctx, snap.Total, info.Ledger, alice); !errors.Is(err, api.ErrHandleNotAllowed) {
		return fmt.Errorf("alice decrypted the campaign total: %v", err)
	}

	if _, err := cli.CloseCampaign(ctx, alice); !errors.Is(err, api.ErrNotOwner) {
		return fmt.Errorf("alice closed the campaign: %v", err)
	}
	if _, err := cli.CloseCampaign(ctx, owner); err != nil {
		return err
	}
	balance, err := cli.Balance(ctx, owner.Address())
	if err != nil {
		return err
	}
	if err := expect(ctx, enc, balance, info.Token, owner, "2"); err != nil {
		return err
	}
	return nil
}

func expect(ctx context.Context, enc *bridge.Client, h types.Handle, contract common.Address, who *ethereum.SignKeys, want string) error {
	got, err := enc.DecryptAmount(ctx, h, contract, who)
	if err != nil {
		return fmt.Errorf("decrypt %s as %s: %w", h, who.AddressString(), err)
	}
	if got != want {
		return fmt.Errorf("decrypted %s as %s: got %s, want %s", h, who.AddressString(), got, want)
	}
	fmt.Printf("%s reads %s\n", who.AddressString(), got)
	return nil
}
