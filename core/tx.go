// Package core defines the structural block and transaction representations
// this engine operates on. Parsing raw wire bytes into these types is the
// job of an external wire-protocol parser; core only assumes it has already
// happened.
package core

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
)

// MsgTx is the structural representation of a transaction, legacy
// (non-segwit) format: this engine targets the pre-BIP141 consensus rules
// named in spec §4.5.
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// TxOut defines a bitcoin transaction output.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// TxIn defines a bitcoin transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

// OutPoint uniquely identifies a single output of a prior transaction:
// a transaction hash plus its output index.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// InputPoint identifies the spender side of a UTXO entry: the transaction
// hash and input index that consumed some outpoint.
type InputPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// NewOutPoint returns a new outpoint for the given hash and index.
func NewOutPoint(hash *chainhash.Hash, index uint32) *OutPoint {
	return &OutPoint{Hash: *hash, Index: index}
}

func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash.String(), o.Index)
}

// Tx wraps a MsgTx along with its position within a containing block and a
// memoized hash, mirroring the MsgBlock/Block split used throughout this
// module.
type Tx struct {
	msgTx   *MsgTx
	txHash  *chainhash.Hash
	txIndex int
}

// NewTx returns a new Tx wrapping msgTx, its index initialized to -1
// (unknown / not part of a block yet).
func NewTx(msgTx *MsgTx) *Tx {
	return &Tx{msgTx: msgTx, txIndex: -1}
}

// Index returns the transaction's position within its containing block, or
// -1 if unknown.
func (t *Tx) Index() int {
	return t.txIndex
}

// SetIndex sets the transaction's position within its containing block.
func (t *Tx) SetIndex(index int) {
	t.txIndex = index
}

// MsgTx returns the underlying wire-level transaction.
func (t *Tx) MsgTx() *MsgTx {
	return t.msgTx
}

// Hash returns the transaction's double-SHA256 hash, computing and caching
// it on first use.
func (t *Tx) Hash() *chainhash.Hash {
	if t.txHash != nil {
		return t.txHash
	}
	hash := t.msgTx.TxHash()
	t.txHash = &hash
	return t.txHash
}

// IsCoinBaseTx determines whether msg is a coinbase transaction: exactly one
// input, whose previous outpoint hash is all zero and whose index is the
// maximum uint32.
func IsCoinBaseTx(msg *MsgTx) bool {
	if len(msg.TxIn) != 1 {
		return false
	}
	prevOut := &msg.TxIn[0].PreviousOutPoint
	return prevOut.Index == ^uint32(0) && prevOut.Hash == chainhash.Hash{}
}

// IsCoinBase is the Tx-wrapped form of IsCoinBaseTx.
func (t *Tx) IsCoinBase() bool {
	return IsCoinBaseTx(t.msgTx)
}

// NewMsgTx returns a new, empty transaction with the given protocol version.
func NewMsgTx(version int32) *MsgTx {
	return &MsgTx{Version: version}
}

// AddTxIn adds a transaction input to the message.
func (msg *MsgTx) AddTxIn(ti *TxIn) {
	msg.TxIn = append(msg.TxIn, ti)
}

// AddTxOut adds a transaction output to the message.
func (msg *MsgTx) AddTxOut(to *TxOut) {
	msg.TxOut = append(msg.TxOut, to)
}

// TxHash computes the transaction's double-SHA256 hash over its
// serialized form. This IS the consensus transaction identity and must
// remain SHA-256-based.
func (msg *MsgTx) TxHash() chainhash.Hash {
	return chainhash.DoubleHashRaw(msg.Serialize)
}

// TxID returns the transaction hash as a reversed hex string.
func (msg *MsgTx) TxID() string {
	h := msg.TxHash()
	return h.String()
}

// SerializeSize returns the number of bytes it would take to serialize msg.
func (msg *MsgTx) SerializeSize() int {
	// version (4) + locktime (4) + varint counts.
	n := 8 + VarIntSerializeSize(uint64(len(msg.TxIn))) +
		VarIntSerializeSize(uint64(len(msg.TxOut)))

	for _, txIn := range msg.TxIn {
		n += 32 + 4 // previous outpoint hash + index
		n += VarIntSerializeSize(uint64(len(txIn.SignatureScript)))
		n += len(txIn.SignatureScript)
		n += 4 // sequence
	}
	for _, txOut := range msg.TxOut {
		n += 8 // value
		n += VarIntSerializeSize(uint64(len(txOut.PkScript)))
		n += len(txOut.PkScript)
	}
	return n
}

// Serialize encodes msg into the legacy bitcoin transaction wire format.
func (msg *MsgTx) Serialize(w io.Writer) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(msg.Version))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, ti := range msg.TxIn {
		if err := writeTxIn(w, ti); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, to := range msg.TxOut {
		if err := writeTxOut(w, to); err != nil {
			return err
		}
	}

	var lt [4]byte
	binary.LittleEndian.PutUint32(lt[:], msg.LockTime)
	_, err := w.Write(lt[:])
	return err
}

func writeTxIn(w io.Writer, ti *TxIn) error {
	if _, err := w.Write(ti.PreviousOutPoint.Hash[:]); err != nil {
		return err
	}
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], ti.PreviousOutPoint.Index)
	if _, err := w.Write(idx[:]); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(ti.SignatureScript))); err != nil {
		return err
	}
	if _, err := w.Write(ti.SignatureScript); err != nil {
		return err
	}
	var seq [4]byte
	binary.LittleEndian.PutUint32(seq[:], ti.Sequence)
	_, err := w.Write(seq[:])
	return err
}

func writeTxOut(w io.Writer, to *TxOut) error {
	var val [8]byte
	binary.LittleEndian.PutUint64(val[:], uint64(to.Value))
	if _, err := w.Write(val[:]); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(to.PkScript))); err != nil {
		return err
	}
	_, err := w.Write(to.PkScript)
	return err
}

// Deserialize decodes msg from the legacy bitcoin transaction wire format.
func (msg *MsgTx) Deserialize(r io.Reader) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}
	msg.Version = int32(binary.LittleEndian.Uint32(hdr[:]))

	inCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	msg.TxIn = make([]*TxIn, inCount)
	for i := range msg.TxIn {
		ti, err := readTxIn(r)
		if err != nil {
			return err
		}
		msg.TxIn[i] = ti
	}

	outCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	msg.TxOut = make([]*TxOut, outCount)
	for i := range msg.TxOut {
		to, err := readTxOut(r)
		if err != nil {
			return err
		}
		msg.TxOut[i] = to
	}

	var lt [4]byte
	if _, err := io.ReadFull(r, lt[:]); err != nil {
		return err
	}
	msg.LockTime = binary.LittleEndian.Uint32(lt[:])
	return nil
}

func readTxIn(r io.Reader) (*TxIn, error) {
	ti := &TxIn{}
	if _, err := io.ReadFull(r, ti.PreviousOutPoint.Hash[:]); err != nil {
		return nil, err
	}
	var idx [4]byte
	if _, err := io.ReadFull(r, idx[:]); err != nil {
		return nil, err
	}
	ti.PreviousOutPoint.Index = binary.LittleEndian.Uint32(idx[:])

	scriptLen, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	ti.SignatureScript = make([]byte, scriptLen)
	if _, err := io.ReadFull(r, ti.SignatureScript); err != nil {
		return nil, err
	}

	var seq [4]byte
	if _, err := io.ReadFull(r, seq[:]); err != nil {
		return nil, err
	}
	ti.Sequence = binary.LittleEndian.Uint32(seq[:])
	return ti, nil
}

func readTxOut(r io.Reader) (*TxOut, error) {
	to := &TxOut{}
	var val [8]byte
	if _, err := io.ReadFull(r, val[:]); err != nil {
		return nil, err
	}
	to.Value = int64(binary.LittleEndian.Uint64(val[:]))

	scriptLen, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	to.PkScript = make([]byte, scriptLen)
	_, err = io.ReadFull(r, to.PkScript)
	return to, err
}

// VarIntSerializeSize returns the number of bytes it would take to
// serialize val as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	switch {
	case val < 0xfd:
		return 1
	case val <= 0xffff:
		return 3
	case val <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// WriteVarInt serializes val as a variable length integer onto w.
func WriteVarInt(w io.Writer, val uint64) error {
	switch {
	case val < 0xfd:
		_, err := w.Write([]byte{byte(val)})
		return err
	case val <= 0xffff:
		buf := make([]byte, 3)
		buf[0] = 0xfd
		binary.LittleEndian.PutUint16(buf[1:], uint16(val))
		_, err := w.Write(buf)
		return err
	case val <= 0xffffffff:
		buf := make([]byte, 5)
		buf[0] = 0xfe
		binary.LittleEndian.PutUint32(buf[1:], uint32(val))
		_, err := w.Write(buf)
		return err
	default:
		buf := make([]byte, 9)
		buf[0] = 0xff
		binary.LittleEndian.PutUint64(buf[1:], val)
		_, err := w.Write(buf)
		return err
	}
}

// ReadVarInt reads a variable length integer from r.
func ReadVarInt(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}
	switch prefix[0] {
	case 0xff:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(buf[:]), nil
	case 0xfe:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(buf[:])), nil
	case 0xfd:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(buf[:])), nil
	default:
		return uint64(prefix[0]), nil
	}
}
