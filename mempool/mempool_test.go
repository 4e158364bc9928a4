package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrichain/harvestnode/blockchain/state"
	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/crypto"
	"github.com/agrichain/harvestnode/storage/database"
)

// testChain issues successive block numbers so repeated helper calls never
// collide with ApplyBlock's idempotence marker.
type testChain struct {
	t      *testing.T
	st     *state.State
	number uint64
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()
	st := state.New(database.NewChainDB(database.NewMemDatabase()))
	require.NoError(t, st.SeedInitialSupply())
	return &testChain{t: t, st: st, number: types.GenesisNumber}
}

func (c *testChain) commit(txs ...*types.Transaction) *types.Block {
	c.t.Helper()
	c.number++
	b, err := types.NewBlock(c.number, int64(c.number), "prev", 1, 0, txs)
	require.NoError(c.t, err)
	require.NoError(c.t, c.st.ApplyBlock(b))
	return b
}

func (c *testChain) credit(to string, amount uint64) {
	c.t.Helper()
	tx := types.NewTransaction(types.MintAccount, to, &types.CoinPurchaseData{Amount: amount})
	c.commit(tx)
}

func newTestMempool(t *testing.T, capacity int, st *state.State) *Mempool {
	t.Helper()
	pool, err := New(capacity, st)
	require.NoError(t, err)
	return pool
}

func signedTransfer(t *testing.T, to string, amount uint64) (*types.Transaction, *crypto.KeyPair) {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx := types.NewTransaction(kp.PublicKeyHex(), to, &types.TransferData{Amount: amount})
	require.NoError(t, tx.Sign(kp.Private))
	return tx, kp
}

func TestAddRejectsUnknownSender(t *testing.T) {
	chain := newTestChain(t)
	pool := newTestMempool(t, 10, chain.st)

	tx, _ := signedTransfer(t, "bob", 5)
	err := pool.Add(tx)
	assert.ErrorIs(t, err, ErrUnknownSender)
}

func TestAddRejectsDuplicateSignature(t *testing.T) {
	chain := newTestChain(t)
	pool := newTestMempool(t, 10, chain.st)

	tx, kp := signedTransfer(t, "bob", 5)
	chain.credit(kp.PublicKeyHex(), 100)

	require.NoError(t, pool.Add(tx))
	err := pool.Add(tx)
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
}

func TestAddEvictsOldestOnOverflow(t *testing.T) {
	chain := newTestChain(t)
	pool := newTestMempool(t, 1, chain.st)

	tx1, kp1 := signedTransfer(t, "bob", 5)
	chain.credit(kp1.PublicKeyHex(), 100)
	require.NoError(t, pool.Add(tx1))

	tx2, kp2 := signedTransfer(t, "carol", 5)
	chain.credit(kp2.PublicKeyHex(), 100)
	require.NoError(t, pool.Add(tx2))

	pending := pool.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, tx2.Signature, pending[0].Signature)
}

func TestEvictCommittedRemovesIncludedTx(t *testing.T) {
	chain := newTestChain(t)
	pool := newTestMempool(t, 10, chain.st)

	tx1, kp1 := signedTransfer(t, "bob", 5)
	chain.credit(kp1.PublicKeyHex(), 100)
	require.NoError(t, pool.Add(tx1))

	block := chain.commit(tx1)
	pool.EvictCommitted(block)

	assert.Len(t, pool.Pending(), 0)
}

func TestEvictCommittedGarbageCollectsUnaffordableTx(t *testing.T) {
	chain := newTestChain(t)
	pool := newTestMempool(t, 10, chain.st)

	tx2, kp2 := signedTransfer(t, "dave", 5)
	chain.credit(kp2.PublicKeyHex(), 5)
	require.NoError(t, pool.Add(tx2))

	drain, _ := signedTransferFromKeyPair(t, kp2, "elsewhere", 5)
	block := chain.commit(drain)
	pool.EvictCommitted(block)

	assert.Len(t, pool.Pending(), 0, "tx2's sender can no longer afford it after drain")
}

func signedTransferFromKeyPair(t *testing.T, kp *crypto.KeyPair, to string, amount uint64) (*types.Transaction, *crypto.KeyPair) {
	t.Helper()
	tx := types.NewTransaction(kp.PublicKeyHex(), to, &types.TransferData{Amount: amount})
	require.NoError(t, tx.Sign(kp.Private))
	return tx, kp
}
