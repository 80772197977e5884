package ledger

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-fundraiser/crypto/elgamal"
	"github.com/vocdoni/confidential-fundraiser/fhe"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/token"
	"github.com/vocdoni/confidential-fundraiser/types"
	"github.com/vocdoni/confidential-fundraiser/util"
)

var (
	owner      = common.HexToAddress("0x000000000000000000000000000000000000000a")
	ledgerAddr = common.HexToAddress("0x00000000000000000000000000000000000001ed")
	tokenAddr  = common.HexToAddress("0x000000000000000000000000000000000000707e")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type recorder struct {
	mu     sync.Mutex
	events []*types.Event
}

func (r *recorder) Publish(ev *types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []types.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := []types.EventKind{}
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

type fixture struct {
	stg    *storage.Storage
	cop    *fhe.Coprocessor
	tok    *token.Token
	ledger *Ledger
	clock  *util.ManualClock
	events *recorder
}

func newFixture(c *qt.C, ids IDGenerator) *fixture {
	stg, err := storage.NewMemory()
	c.Assert(err, qt.IsNil)
	key, err := fhe.NetworkKey(stg, "")
	c.Assert(err, qt.IsNil)
	f := &fixture{
		stg:    stg,
		cop:    fhe.New(key, 1<<24),
		clock:  util.NewManualClock(time.Unix(1_700_000_000, 0)),
		events: &recorder{},
	}
	f.tok = token.New(tokenAddr, f.cop, f.clock)
	f.ledger, err = New(stg, f.cop, f.tok, Config{
		Owner:    owner,
		Address:  ledgerAddr,
		Clock:    f.clock,
		IDs:      ids,
		Observer: f.events,
	})
	c.Assert(err, qt.IsNil)
	return f
}

func (f *fixture) now() uint64 {
	return uint64(f.clock.Now().Unix())
}

// fund mints amount to the holder and approves the ledger as its operator.
func (f *fixture) fund(c *qt.C, holder common.Address, amount uint64) {
	_, err := f.stg.Update(func(tx *storage.Tx) error {
		if _, err := f.tok.Mint(tx, holder, amount); err != nil {
			return err
		}
		return f.tok.SetOperator(tx, holder, ledgerAddr, f.now()+365*24*3600)
	})
	c.Assert(err, qt.IsNil)
}

func (f *fixture) input(c *qt.C, amount uint64, caller common.Address) *types.EncryptedInput {
	pub := f.cop.PublicKey()
	msg := new(big.Int).SetUint64(amount)
	k, err := elgamal.RandK(pub)
	c.Assert(err, qt.IsNil)
	ct, err := elgamal.NewCiphertext(pub).Encrypt(msg, pub, k)
	c.Assert(err, qt.IsNil)
	proof, err := elgamal.Prove(pub, ct, msg, k, fhe.InputContext(ledgerAddr, caller))
	c.Assert(err, qt.IsNil)
	return &types.EncryptedInput{Ciphertext: ct.Serialize(), Proof: proof.Serialize()}
}

func (f *fixture) contribute(c *qt.C, caller common.Address, amount uint64) types.Handle {
	h, err := f.ledger.Contribute(caller, f.input(c, amount, caller))
	c.Assert(err, qt.IsNil)
	return h
}

func (f *fixture) decrypt(c *qt.C, h types.Handle) uint64 {
	var v uint64
	c.Assert(f.stg.View(func(tx *storage.Tx) (err error) {
		v, err = f.cop.Decrypt(tx, h)
		return err
	}), qt.IsNil)
	return v
}

func (f *fixture) balance(c *qt.C, holder common.Address) uint64 {
	var h types.Handle
	c.Assert(f.stg.View(func(tx *storage.Tx) (err error) {
		h, err = f.tok.ConfidentialBalanceOf(tx, holder)
		return err
	}), qt.IsNil)
	return f.decrypt(c, h)
}

func (f *fixture) allowed(c *qt.C, h types.Handle, addr common.Address) bool {
	var ok bool
	c.Assert(f.stg.View(func(tx *storage.Tx) (err error) {
		ok, err = f.cop.IsAllowed(tx, h, addr)
		return err
	}), qt.IsNil)
	return ok
}

func TestNew(t *testing.T) {
	c := qt.New(t)
	stg, err := storage.NewMemory()
	c.Assert(err, qt.IsNil)
	_, err = New(stg, nil, nil, Config{Address: ledgerAddr})
	c.Assert(err, qt.ErrorMatches, "owner address not set")
	_, err = New(stg, nil, nil, Config{Owner: owner})
	c.Assert(err, qt.ErrorMatches, "ledger address not set")
}

func TestConfigure(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, nil)
	end := f.now() + 3600

	_, err := f.ledger.Configure(alice, "Demo", 100, end)
	c.Assert(err, qt.ErrorIs, ErrNotOwner)
	_, err = f.ledger.Configure(owner, "Demo", 100, f.now())
	c.Assert(err, qt.ErrorIs, ErrInvalidEndTime)
	_, err = f.ledger.ActiveCampaignID()
	c.Assert(err, qt.ErrorIs, ErrNotConfigured)
	_, err = f.ledger.Campaign()
	c.Assert(err, qt.ErrorIs, ErrNotConfigured)

	camp, err := f.ledger.Configure(owner, "Demo", 100, end)
	c.Assert(err, qt.IsNil)
	c.Assert(camp.ID, qt.Equals, uint64(1))

	// reconfiguring while not finalized keeps the id
	for i, name := range []string{"Renamed", "Again"} {
		camp, err = f.ledger.Configure(owner, name, uint64(200+i), end+uint64(i))
		c.Assert(err, qt.IsNil)
		c.Assert(camp.ID, qt.Equals, uint64(1))
	}
	snap, err := f.ledger.Campaign()
	c.Assert(err, qt.IsNil)
	c.Assert(snap.ID, qt.Equals, uint64(1))
	c.Assert(snap.Name, qt.Equals, "Again")
	c.Assert(snap.Target, qt.Equals, uint64(201))
	c.Assert(snap.EndTime, qt.Equals, end+1)
	c.Assert(snap.Finalized, qt.IsFalse)
	c.Assert(snap.Active, qt.IsTrue)

	id, err := f.ledger.ActiveCampaignID()
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, uint64(1))

	c.Assert(f.events.kinds(), qt.DeepEquals, []types.EventKind{
		types.EventCampaignConfigured,
		types.EventCampaignConfigured,
		types.EventCampaignConfigured,
	})
	c.Assert(f.events.events[2].Name, qt.Equals, "Again")
	c.Assert(f.events.events[2].Seq, qt.Equals, uint64(3))
}

func TestNewCampaignAfterClose(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, nil)
	f.fund(c, alice, 1_000)

	_, err := f.ledger.Configure(owner, "First", 10, f.now()+3600)
	c.Assert(err, qt.IsNil)
	f.contribute(c, alice, 300)
	_, _, err = f.ledger.CloseCampaign(owner)
	c.Assert(err, qt.IsNil)

	camp, err := f.ledger.Configure(owner, "Second", 10, f.now()+3600)
	c.Assert(err, qt.IsNil)
	c.Assert(camp.ID, qt.Equals, uint64(2))
	c.Assert(camp.Finalized, qt.IsFalse)
	// the new aggregate starts at zero and the owner may read it
	c.Assert(f.decrypt(c, camp.Total), qt.Equals, uint64(0))
	c.Assert(f.allowed(c, camp.Total, owner), qt.IsTrue)

	// past campaigns are kept as history
	h, err := f.ledger.Contribution(1, alice)
	c.Assert(err, qt.IsNil)
	c.Assert(f.decrypt(c, h), qt.Equals, uint64(300))
	h, err = f.ledger.Contribution(2, alice)
	c.Assert(err, qt.IsNil)
	c.Assert(h.IsZero(), qt.IsTrue)
}

func TestContributeSums(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, nil)
	f.fund(c, alice, 1_000_000)
	f.fund(c, bob, 1_000_000)

	_, err := f.ledger.Configure(owner, "Demo", 500_000, f.now()+3600)
	c.Assert(err, qt.IsNil)

	var aliceHandle, bobHandle types.Handle
	for _, v := range []uint64{100, 2_000, 30_000} {
		aliceHandle = f.contribute(c, alice, v)
	}
	bobHandle = f.contribute(c, bob, 7)

	c.Assert(f.decrypt(c, aliceHandle), qt.Equals, uint64(32_100))
	c.Assert(f.decrypt(c, bobHandle), qt.Equals, uint64(7))
	h, err := f.ledger.Contribution(1, alice)
	c.Assert(err, qt.IsNil)
	c.Assert(h, qt.Equals, aliceHandle)

	snap, err := f.ledger.Campaign()
	c.Assert(err, qt.IsNil)
	c.Assert(f.decrypt(c, snap.Total), qt.Equals, uint64(32_107))
	c.Assert(snap.StateRoot, qt.Not(qt.HasLen), 0)
	c.Assert(f.balance(c, alice), qt.Equals, uint64(1_000_000-32_100))
	c.Assert(f.balance(c, ledgerAddr), qt.Equals, uint64(32_107))

	// decryption rights are narrowly scoped
	c.Assert(f.allowed(c, aliceHandle, alice), qt.IsTrue)
	c.Assert(f.allowed(c, aliceHandle, bob), qt.IsFalse)
	c.Assert(f.allowed(c, aliceHandle, owner), qt.IsFalse)
	c.Assert(f.allowed(c, snap.Total, owner), qt.IsTrue)
	c.Assert(f.allowed(c, snap.Total, alice), qt.IsFalse)

	// the state tree commits the latest handle of each contributor
	leaf, err := f.stg.ContributionLeaf(1, alice)
	c.Assert(err, qt.IsNil)
	c.Assert(leaf, qt.DeepEquals, aliceHandle.Bytes())

	last := f.events.events[len(f.events.events)-1]
	c.Assert(last.Kind, qt.Equals, types.EventContributionReceived)
	c.Assert(*last.From, qt.Equals, bob)
	c.Assert(*last.Handle, qt.Equals, bobHandle)
	c.Assert(last.Amount, qt.Equals, uint64(0))
}

func TestContributeUncoveredAddsZero(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, nil)
	f.fund(c, alice, 10)

	_, err := f.ledger.Configure(owner, "Demo", 1, f.now()+3600)
	c.Assert(err, qt.IsNil)
	h := f.contribute(c, alice, 11)
	c.Assert(f.decrypt(c, h), qt.Equals, uint64(0))
	c.Assert(f.balance(c, alice), qt.Equals, uint64(10))
}

func TestContributeFailures(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, nil)
	f.fund(c, alice, 1_000)

	_, err := f.ledger.Contribute(alice, f.input(c, 1, alice))
	c.Assert(err, qt.ErrorIs, ErrNotConfigured)

	_, err = f.ledger.Configure(owner, "Demo", 1, f.now()+60)
	c.Assert(err, qt.IsNil)
	before := len(f.events.kinds())

	// proofs bound to someone else are rejected
	_, err = f.ledger.Contribute(alice, f.input(c, 1, bob))
	c.Assert(err, qt.ErrorIs, fhe.ErrInvalidProof)

	// contributors must approve the ledger as operator
	_, err = f.ledger.Contribute(bob, f.input(c, 1, bob))
	c.Assert(err, qt.ErrorIs, token.ErrNotOperator)

	f.clock.Advance(60 * time.Second)
	c.Assert(f.ledger.IsActive(), qt.IsFalse)
	_, err = f.ledger.Contribute(alice, f.input(c, 1, alice))
	c.Assert(err, qt.ErrorIs, ErrDeadlinePassed)

	_, _, err = f.ledger.CloseCampaign(owner)
	c.Assert(err, qt.IsNil)
	_, err = f.ledger.Contribute(alice, f.input(c, 1, alice))
	c.Assert(err, qt.ErrorIs, ErrAlreadyFinalized)

	// failed contributions leave no trace
	h, err := f.ledger.Contribution(1, alice)
	c.Assert(err, qt.IsNil)
	c.Assert(h.IsZero(), qt.IsTrue)
	c.Assert(f.balance(c, alice), qt.Equals, uint64(1_000))
	c.Assert(f.events.kinds()[before:], qt.DeepEquals, []types.EventKind{
		types.EventTransfer,
		types.EventCampaignClosed,
	})
}

func TestCloseCampaign(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, nil)
	f.fund(c, alice, 5_000)
	f.fund(c, bob, 5_000)

	_, _, err := f.ledger.CloseCampaign(owner)
	c.Assert(err, qt.ErrorIs, ErrNotConfigured)

	_, err = f.ledger.Configure(owner, "Demo", 1, f.now()+3600)
	c.Assert(err, qt.IsNil)
	f.contribute(c, alice, 1_200)
	f.contribute(c, bob, 800)
	snap, err := f.ledger.Campaign()
	c.Assert(err, qt.IsNil)
	aggregate := f.decrypt(c, snap.Total)
	ownerBefore := f.balance(c, owner)

	_, _, err = f.ledger.CloseCampaign(alice)
	c.Assert(err, qt.ErrorIs, ErrNotOwner)

	camp, payout, err := f.ledger.CloseCampaign(owner)
	c.Assert(err, qt.IsNil)
	c.Assert(camp.Finalized, qt.IsTrue)
	c.Assert(f.decrypt(c, payout), qt.Equals, aggregate)
	c.Assert(f.balance(c, owner), qt.Equals, ownerBefore+aggregate)
	c.Assert(f.balance(c, ledgerAddr), qt.Equals, uint64(0))
	c.Assert(f.allowed(c, payout, owner), qt.IsTrue)

	_, _, err = f.ledger.CloseCampaign(owner)
	c.Assert(err, qt.ErrorIs, ErrAlreadyFinalized)

	snap, err = f.ledger.Campaign()
	c.Assert(err, qt.IsNil)
	c.Assert(snap.Finalized, qt.IsTrue)
	c.Assert(snap.Active, qt.IsFalse)

	last := f.events.events[len(f.events.events)-1]
	c.Assert(last.Kind, qt.Equals, types.EventCampaignClosed)
	c.Assert(*last.Handle, qt.Equals, payout)
	c.Assert(last.Timestamp, qt.Equals, f.now())
}

func TestCloseWithoutContributions(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, nil)

	_, err := f.ledger.Configure(owner, "Empty", 1, f.now()+3600)
	c.Assert(err, qt.IsNil)
	_, payout, err := f.ledger.CloseCampaign(owner)
	c.Assert(err, qt.IsNil)
	c.Assert(f.decrypt(c, payout), qt.Equals, uint64(0))
	c.Assert(f.balance(c, owner), qt.Equals, uint64(0))
}

func TestCloseFullSupply(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, nil)
	max := f.cop.MaxPlaintext()
	f.fund(c, alice, max/2)
	f.fund(c, bob, max-max/2)

	_, err := f.stg.Update(func(tx *storage.Tx) error {
		_, err := f.tok.Mint(tx, alice, 1)
		return err
	})
	c.Assert(err, qt.ErrorIs, token.ErrSupplyExceeded)

	_, err = f.ledger.Configure(owner, "Pool", max, f.now()+3600)
	c.Assert(err, qt.IsNil)
	f.contribute(c, alice, max/2)
	f.contribute(c, bob, max-max/2)
	snap, err := f.ledger.Campaign()
	c.Assert(err, qt.IsNil)
	c.Assert(f.decrypt(c, snap.Total), qt.Equals, max)

	_, payout, err := f.ledger.CloseCampaign(owner)
	c.Assert(err, qt.IsNil)
	c.Assert(f.decrypt(c, payout), qt.Equals, max)
	c.Assert(f.balance(c, owner), qt.Equals, max)
	c.Assert(f.balance(c, ledgerAddr), qt.Equals, uint64(0))

	// the owner can still move the whole payout
	_, err = f.stg.Update(func(tx *storage.Tx) error {
		amount, err := f.cop.TrivialEncrypt(tx, max, owner)
		if err != nil {
			return err
		}
		f.cop.AllowTransient(tx, amount, tokenAddr)
		moved, err := f.tok.ConfidentialTransfer(tx, owner, alice, amount)
		if err != nil {
			return err
		}
		v, err := f.cop.Decrypt(tx, moved)
		c.Assert(v, qt.Equals, max)
		return err
	})
	c.Assert(err, qt.IsNil)
}

func TestDemoScenario(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, nil)
	f.fund(c, alice, 10_000_000)

	_, err := f.ledger.Configure(owner, "Demo", 2_000_000, f.now()+3600)
	c.Assert(err, qt.IsNil)
	h := f.contribute(c, alice, 1_250_000)
	c.Assert(f.decrypt(c, h), qt.Equals, uint64(1_250_000))

	snap, err := f.ledger.Campaign()
	c.Assert(err, qt.IsNil)
	c.Assert(f.decrypt(c, snap.Total), qt.Equals, uint64(1_250_000))

	camp, _, err := f.ledger.CloseCampaign(owner)
	c.Assert(err, qt.IsNil)
	c.Assert(camp.Finalized, qt.IsTrue)
	c.Assert(f.balance(c, owner), qt.Equals, uint64(1_250_000))
}

func TestIsActive(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, nil)

	c.Assert(f.ledger.IsActive(), qt.IsFalse)

	end := f.now() + 10
	_, err := f.ledger.Configure(owner, "Demo", 1, end)
	c.Assert(err, qt.IsNil)
	c.Assert(f.ledger.IsActive(), qt.IsTrue)

	f.clock.Set(time.Unix(int64(end)-1, 0))
	c.Assert(f.ledger.IsActive(), qt.IsTrue)
	f.clock.Set(time.Unix(int64(end), 0))
	c.Assert(f.ledger.IsActive(), qt.IsFalse)

	f.clock.Set(time.Unix(int64(end)-5, 0))
	_, _, err = f.ledger.CloseCampaign(owner)
	c.Assert(err, qt.IsNil)
	c.Assert(f.ledger.IsActive(), qt.IsFalse)
}

type stepIDs struct{ step uint64 }

func (s stepIDs) Next(prev uint64) uint64 {
	return prev + s.step
}

func TestIDGenerator(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, stepIDs{step: 10})

	camp, err := f.ledger.Configure(owner, "A", 1, f.now()+60)
	c.Assert(err, qt.IsNil)
	c.Assert(camp.ID, qt.Equals, uint64(10))
	_, _, err = f.ledger.CloseCampaign(owner)
	c.Assert(err, qt.IsNil)
	camp, err = f.ledger.Configure(owner, "B", 1, f.now()+60)
	c.Assert(err, qt.IsNil)
	c.Assert(camp.ID, qt.Equals, uint64(20))

	// non monotonic generators are rejected
	f = newFixture(c, stepIDs{step: 0})
	_, err = f.ledger.Configure(owner, "A", 1, f.now()+60)
	c.Assert(err, qt.ErrorMatches, "id generator returned 0 after 0")
	_, err = f.ledger.ActiveCampaignID()
	c.Assert(err, qt.ErrorIs, ErrNotConfigured)
	c.Assert(f.events.kinds(), qt.HasLen, 0)
}

func TestConcurrentContributeAndClose(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, nil)
	f.fund(c, alice, 1_000_000)

	_, err := f.ledger.Configure(owner, "Race", 1, f.now()+3600)
	c.Assert(err, qt.IsNil)

	inputs := make([]*types.EncryptedInput, 8)
	for i := range inputs {
		inputs[i] = f.input(c, 10, alice)
	}
	var wg sync.WaitGroup
	errs := make([]error, len(inputs))
	for i, in := range inputs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.ledger.Contribute(alice, in)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, err := f.ledger.CloseCampaign(owner)
		c.Check(err, qt.IsNil)
	}()
	wg.Wait()

	// contributions either landed before the close or failed cleanly
	landed := uint64(0)
	for _, err := range errs {
		if err != nil {
			c.Assert(err, qt.ErrorIs, ErrAlreadyFinalized)
			continue
		}
		landed++
	}
	h, err := f.ledger.Contribution(1, alice)
	c.Assert(err, qt.IsNil)
	c.Assert(f.decrypt(c, h), qt.Equals, landed*10)
	c.Assert(f.balance(c, owner), qt.Equals, landed*10)
}
