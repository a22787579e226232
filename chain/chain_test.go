package chain

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/config"
	"github.com/dario-ramos/bitprim-blockchain/core"
	"github.com/dario-ramos/bitprim-blockchain/validator"
)

func easyParams() *validator.ConsensusParams {
	p := validator.MainNetParams()
	p.PowLimit = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	p.CoinbaseMaturity = 0
	return p
}

func newTestChain(t *testing.T) *Chain {
	t.Helper()
	cfg := &config.Config{}
	cfg.Engine.DataDir = t.TempDir()
	cfg.Engine.Network = "regtest"
	cfg.Engine.OrphanCapacity = 10

	c, err := Open(cfg, easyParams(), nil)
	if err != nil {
		t.Fatalf("open chain: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func coinbaseTxAt(nonce byte, value int64) *core.MsgTx {
	msgTx := core.NewMsgTx(1)
	msgTx.AddTxIn(&core.TxIn{
		PreviousOutPoint: core.OutPoint{Index: ^uint32(0)},
		SignatureScript:  []byte{0x02, nonce},
	})
	msgTx.AddTxOut(&core.TxOut{Value: value, PkScript: []byte{0x76, 0xa9}})
	return msgTx
}

func buildBlockAt(t *testing.T, params *validator.ConsensusParams, prev chainhash.Hash, txs []*core.MsgTx, timestampOffset int64) *core.Block {
	t.Helper()
	wrapped := make([]*core.Tx, len(txs))
	for i, tx := range txs {
		wrapped[i] = core.NewTx(tx)
	}
	header := &core.BlockHeader{
		Version:    1,
		PrevBlock:  prev,
		Timestamp:  time.Now().Unix() + timestampOffset,
		Bits:       validator.BigToCompact(params.PowLimit),
		MerkleRoot: validator.CalcMerkleRoot(wrapped),
	}
	block, err := core.NewBlockFromHeaderAndTransactions(header, txs)
	if err != nil {
		t.Fatal(err)
	}
	return block
}

func TestOpenTakesExclusiveLock(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Engine.DataDir = dir
	cfg.Engine.Network = "regtest"
	cfg.Engine.OrphanCapacity = 10

	c1, err := Open(cfg, easyParams(), nil)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	defer c1.Close()

	_, err = Open(cfg, easyParams(), nil)
	if err == nil {
		t.Fatal("expected second open of the same data directory to fail")
	}
	var chainErr *Error
	if !errors.As(err, &chainErr) || chainErr.Code != ErrLockHeld {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
}

func TestStoreGenesisThenFetchOperations(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	genesis := buildBlockAt(t, easyParams(), chainhash.Hash{}, []*core.MsgTx{coinbaseTxAt(1, 5000000000)}, 0)
	accepted, isOrphan, _, err := c.Store(ctx, genesis)
	if err != nil {
		t.Fatalf("store genesis: %v", err)
	}
	if !accepted || isOrphan {
		t.Fatalf("expected genesis to connect, got accepted=%v isOrphan=%v", accepted, isOrphan)
	}

	height, err := c.FetchLastHeight(ctx)
	if err != nil {
		t.Fatalf("fetch last height: %v", err)
	}
	if height != 0 {
		t.Fatalf("expected height 0, got %d", height)
	}

	header, err := c.FetchBlockHeader(ctx, 0)
	if err != nil {
		t.Fatalf("fetch header: %v", err)
	}
	if header.PrevBlock != (chainhash.Hash{}) {
		t.Fatal("expected genesis header's prev block to be the zero hash")
	}

	hashes, err := c.FetchBlockTransactionHashes(ctx, *genesis.Hash())
	if err != nil {
		t.Fatalf("fetch tx hashes: %v", err)
	}
	if len(hashes) != 1 {
		t.Fatalf("expected 1 transaction hash, got %d", len(hashes))
	}

	locator, err := c.FetchBlockLocator(ctx)
	if err != nil {
		t.Fatalf("fetch locator: %v", err)
	}
	if len(locator) != 1 || locator[0] != *genesis.Hash() {
		t.Fatalf("expected locator to contain only the genesis hash, got %v", locator)
	}
}

func TestStoreDuplicateBlockReturnsTypedError(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	genesis := buildBlockAt(t, easyParams(), chainhash.Hash{}, []*core.MsgTx{coinbaseTxAt(1, 5000000000)}, 0)
	if _, _, _, err := c.Store(ctx, genesis); err != nil {
		t.Fatalf("store genesis: %v", err)
	}

	_, _, _, err := c.Store(ctx, genesis)
	if err == nil {
		t.Fatal("expected an error re-storing the same block")
	}
	var chainErr *Error
	if !errors.As(err, &chainErr) || chainErr.Code != ErrDuplicateBlock {
		t.Fatalf("expected ErrDuplicateBlock, got %v", err)
	}
}

func TestFetchMissingBlockHashesFiltersKnown(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	genesis := buildBlockAt(t, easyParams(), chainhash.Hash{}, []*core.MsgTx{coinbaseTxAt(1, 5000000000)}, 0)
	if _, _, _, err := c.Store(ctx, genesis); err != nil {
		t.Fatalf("store genesis: %v", err)
	}

	unknown := chainhash.Hash{0xaa}
	missing, err := c.FetchMissingBlockHashes(ctx, []chainhash.Hash{*genesis.Hash(), unknown})
	if err != nil {
		t.Fatalf("fetch missing: %v", err)
	}
	if len(missing) != 1 || missing[0] != unknown {
		t.Fatalf("expected only the unknown hash to be reported missing, got %v", missing)
	}
}

func TestFetchHistoryAndStealthAreStubbed(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	if _, err := c.FetchHistory(ctx, []byte("addr"), 10, 0); err == nil {
		t.Fatal("expected fetch_history to report not found: no address index is built")
	}
	if _, err := c.FetchStealth(ctx, []byte{0x01}, 0); err == nil {
		t.Fatal("expected fetch_stealth to report not found: no stealth index is built")
	}
}

func TestImportSkipsValidationButRequiresContiguousHeight(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	genesis := buildBlockAt(t, easyParams(), chainhash.Hash{}, []*core.MsgTx{coinbaseTxAt(1, 5000000000)}, 0)
	if _, err := c.Import(ctx, genesis, 0); err != nil {
		t.Fatalf("import genesis: %v", err)
	}

	block1 := buildBlockAt(t, easyParams(), *genesis.Hash(), []*core.MsgTx{coinbaseTxAt(2, 5000000000)}, 1)
	if _, err := c.Import(ctx, block1, 5); err == nil {
		t.Fatal("expected import at a non-contiguous height to fail")
	}
	if _, err := c.Import(ctx, block1, 1); err != nil {
		t.Fatalf("import block1: %v", err)
	}

	height, err := c.FetchLastHeight(ctx)
	if err != nil {
		t.Fatalf("fetch last height: %v", err)
	}
	if height != 1 {
		t.Fatalf("expected height 1 after import, got %d", height)
	}
}
