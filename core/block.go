package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
)

// OutOfRangeError is returned when a caller indexes past the end of a
// block's transaction list.
type OutOfRangeError string

func (e OutOfRangeError) Error() string {
	return string(e)
}

// BlockHeightUnknown marks a Block whose height has not yet been assigned
// (it is not connected to the main chain). Height is only valid once the
// block is confirmed, per spec §3.
const BlockHeightUnknown = int32(-1)

const blockHeaderLen = 80

// BlockHeader is the structural representation of a block header.
type BlockHeader struct {
	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  int64
	Bits       uint32
	Nonce      uint32
}

// BlockHash computes the header's double-SHA256 hash. This is the block's
// consensus identity.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	var buf [blockHeaderLen]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Version))
	copy(buf[4:36], h.PrevBlock[:])
	copy(buf[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(buf[68:72], uint32(h.Timestamp))
	binary.LittleEndian.PutUint32(buf[72:76], h.Bits)
	binary.LittleEndian.PutUint32(buf[76:80], h.Nonce)
	return chainhash.DoubleHashH(buf[:])
}

// ParentHash returns a pointer to the header's previous-block hash.
func (h *BlockHeader) ParentHash() *chainhash.Hash {
	return &h.PrevBlock
}

// MsgBlock is the structural representation of a full block: a header plus
// its transactions.
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*MsgTx
}

// AddTransaction appends tx to the block.
func (mb *MsgBlock) AddTransaction(tx *MsgTx) {
	mb.Transactions = append(mb.Transactions, tx)
}

// BlockHash computes the block's header hash.
func (mb *MsgBlock) BlockHash() chainhash.Hash {
	return mb.Header.BlockHash()
}

// SerializeSize returns the number of bytes it would take to serialize mb.
func (mb *MsgBlock) SerializeSize() int {
	n := blockHeaderLen + VarIntSerializeSize(uint64(len(mb.Transactions)))
	for _, tx := range mb.Transactions {
		n += tx.SerializeSize()
	}
	return n
}

func (mb *MsgBlock) serialize(w *bytes.Buffer) error {
	var hdr [blockHeaderLen]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(mb.Header.Version))
	copy(hdr[4:36], mb.Header.PrevBlock[:])
	copy(hdr[36:68], mb.Header.MerkleRoot[:])
	binary.LittleEndian.PutUint32(hdr[68:72], uint32(mb.Header.Timestamp))
	binary.LittleEndian.PutUint32(hdr[72:76], mb.Header.Bits)
	binary.LittleEndian.PutUint32(hdr[76:80], mb.Header.Nonce)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(mb.Transactions))); err != nil {
		return err
	}
	for _, tx := range mb.Transactions {
		if err := tx.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// Block wraps a MsgBlock with lazily computed, cached derived data: its
// hash, its height once connected, and its wrapped transaction list.
type Block struct {
	msgBlock       *MsgBlock
	serializedSize int
	blockHash      *chainhash.Hash
	blockHeight    int32
	transactions   []*Tx
	txnsGenerated  bool
}

// NewBlock returns a new Block wrapping msgBlock, with height unknown.
func NewBlock(msgBlock *MsgBlock) *Block {
	return &Block{
		msgBlock:    msgBlock,
		blockHeight: BlockHeightUnknown,
	}
}

// MsgBlock returns the underlying wire-level block.
func (b *Block) MsgBlock() *MsgBlock {
	return b.msgBlock
}

// Height returns the block's height, or BlockHeightUnknown if not yet
// connected to the main chain.
func (b *Block) Height() int32 {
	return b.blockHeight
}

// SetHeight assigns the block's height. Per spec §3, height is only
// meaningful once the block is connected.
func (b *Block) SetHeight(height int32) {
	b.blockHeight = height
}

// Hash returns the block's header hash, computing and caching it on first
// use.
func (b *Block) Hash() *chainhash.Hash {
	if b.blockHash != nil {
		return b.blockHash
	}
	hash := b.msgBlock.BlockHash()
	b.blockHash = &hash
	return b.blockHash
}

// LegacyDigest computes a fast, non-consensus fingerprint of the full
// serialized block (header and transactions). It is not the block's
// consensus identity; use Hash for that. The orphan pool keys its maps by
// Hash, not by this digest.
func (b *Block) LegacyDigest() chainhash.Hash {
	return chainhash.Hash256FromWriter(b.msgBlock.serialize)
}

// Header returns a copy of the block's header.
func (b *Block) Header() BlockHeader {
	return b.msgBlock.Header
}

// Bits returns the block header's compact difficulty target.
func (b *Block) Bits() uint32 {
	return b.msgBlock.Header.Bits
}

// Timestamp returns the block header's timestamp.
func (b *Block) Timestamp() int64 {
	return b.msgBlock.Header.Timestamp
}

// Bytes returns the block's serialized form. It serializes the block
// afresh on every call; the result is not cached.
func (b *Block) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(b.msgBlock.SerializeSize())
	if err := b.msgBlock.serialize(&buf); err != nil {
		return nil, err
	}
	b.serializedSize = buf.Len()
	return buf.Bytes(), nil
}

// Size returns the number of bytes the block's serialized form occupies.
func (b *Block) Size() (int, error) {
	if b.serializedSize > 0 {
		return b.serializedSize, nil
	}
	raw, err := b.Bytes()
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

// Tx returns the txNum'th transaction in the block, lazily wrapping and
// caching it.
func (b *Block) Tx(txNum int) (*Tx, error) {
	numTx := len(b.msgBlock.Transactions)
	if txNum < 0 || txNum >= numTx {
		str := fmt.Sprintf("transaction index %d is out of range - max %d",
			txNum, numTx-1)
		return nil, OutOfRangeError(str)
	}

	if len(b.transactions) == 0 {
		b.transactions = make([]*Tx, numTx)
	}
	if b.transactions[txNum] != nil {
		return b.transactions[txNum], nil
	}

	newTx := NewTx(b.msgBlock.Transactions[txNum])
	newTx.SetIndex(txNum)
	b.transactions[txNum] = newTx
	return newTx, nil
}

// Transactions returns every transaction in the block, wrapped and cached.
func (b *Block) Transactions() []*Tx {
	if b.txnsGenerated {
		return b.transactions
	}
	if len(b.transactions) == 0 {
		b.transactions = make([]*Tx, len(b.msgBlock.Transactions))
	}
	for i, tx := range b.transactions {
		if tx == nil {
			newTx := NewTx(b.msgBlock.Transactions[i])
			newTx.SetIndex(i)
			b.transactions[i] = newTx
		}
	}
	b.txnsGenerated = true
	return b.transactions
}

// TxHashes returns the transaction hash set for the block.
func (b *Block) TxHashes() []chainhash.Hash {
	txs := b.Transactions()
	hashes := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = *tx.Hash()
	}
	return hashes
}

var errNilHeader = errors.New("block header cannot be nil")

// NewBlockFromHeaderAndTransactions assembles a Block from a header and a
// transaction list, validating nothing beyond non-nilness; validation is
// the validator package's job.
func NewBlockFromHeaderAndTransactions(header *BlockHeader, txs []*MsgTx) (*Block, error) {
	if header == nil {
		return nil, errNilHeader
	}
	msgBlock := &MsgBlock{
		Header:       *header,
		Transactions: txs,
	}
	return NewBlock(msgBlock), nil
}
