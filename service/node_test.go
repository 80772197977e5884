package service

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-fundraiser/api/client"
	"github.com/vocdoni/confidential-fundraiser/bridge"
	"github.com/vocdoni/confidential-fundraiser/config"
	"github.com/vocdoni/confidential-fundraiser/crypto/ethereum"
	"github.com/vocdoni/confidential-fundraiser/util"
	"go.vocdoni.io/dvote/db"
)

func TestNode(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	owner := ethereum.NewSignKeys()
	c.Assert(owner.Generate(), qt.IsNil)
	alice := ethereum.NewSignKeys()
	c.Assert(alice.Generate(), qt.IsNil)

	conf := config.Default()
	conf.DataDir = t.TempDir()
	conf.DBType = db.TypePebble
	conf.Host = "127.0.0.1"
	conf.Port = 0
	conf.OwnerAddress = owner.Address()
	conf.MaxPlaintext = 1 << 24

	node := NewNode(conf, nil)
	c.Assert(node.Start(ctx), qt.IsNil)
	c.Assert(node.Start(ctx), qt.ErrorMatches, "service already running")

	cli, err := client.New(node.URL())
	c.Assert(err, qt.IsNil)
	end := uint64(time.Now().Add(time.Hour).Unix())
	_, err = cli.Configure(ctx, owner, "Demo", 1_000_000, end)
	c.Assert(err, qt.IsNil)
	_, err = cli.Mint(ctx, alice, 5_000_000)
	c.Assert(err, qt.IsNil)
	c.Assert(cli.SetOperator(ctx, alice, conf.LedgerAddress, end), qt.IsNil)

	enc := bridge.New(cli, util.SystemClock{})
	c.Assert(enc.Init(ctx), qt.IsNil)
	input, err := enc.EncryptAmount("2.5", conf.LedgerAddress, alice.Address())
	c.Assert(err, qt.IsNil)
	resp, err := cli.Contribute(ctx, alice, input)
	c.Assert(err, qt.IsNil)
	node.Stop()
	node.Stop()

	// the state and the network key survive a restart
	c.Assert(node.Start(ctx), qt.IsNil)
	defer node.Stop()
	cli, err = client.New(node.URL())
	c.Assert(err, qt.IsNil)
	enc = bridge.New(cli, nil)
	c.Assert(enc.Init(ctx), qt.IsNil)
	h, err := cli.Contribution(ctx, 1, alice.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(h, qt.Equals, resp.Handle)
	amount, err := enc.DecryptAmount(ctx, h, conf.LedgerAddress, alice)
	c.Assert(err, qt.IsNil)
	c.Assert(amount, qt.Equals, "2.5")
}

func TestNodeInvalidConfig(t *testing.T) {
	c := qt.New(t)
	conf := config.Default()
	conf.DataDir = t.TempDir()
	node := NewNode(conf, nil)
	c.Assert(node.Start(context.Background()), qt.ErrorMatches, "invalid configuration: .*")
	c.Assert(node.URL(), qt.Equals, "")
}
