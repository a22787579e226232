package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/core"
)

// BlockHeaderDTO is a protobuf wire shape for a block header plus its
// height. The chain facade's FetchBlockHeader returns a *core.BlockHeader
// and does not use it. Unlike the teacher's ToProto/FromProto
// pair (which target a code-generated message with no .proto/.pb.go in
// this build), this is hand-marshaled with protowire directly: same
// dependency, no code generator required.
type BlockHeaderDTO struct {
	Height     int32
	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  int64
	Bits       uint32
	Nonce      uint32
}

const (
	fieldHeight     protowire.Number = 1
	fieldVersion    protowire.Number = 2
	fieldPrevBlock  protowire.Number = 3
	fieldMerkleRoot protowire.Number = 4
	fieldTimestamp  protowire.Number = 5
	fieldBits       protowire.Number = 6
	fieldNonce      protowire.Number = 7
)

// MarshalBlockHeaderDTO encodes header at height into protobuf wire format.
func MarshalBlockHeaderDTO(header *core.BlockHeader, height int32) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldHeight, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(height)))
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(header.Version)))
	b = protowire.AppendTag(b, fieldPrevBlock, protowire.BytesType)
	b = protowire.AppendBytes(b, header.PrevBlock[:])
	b = protowire.AppendTag(b, fieldMerkleRoot, protowire.BytesType)
	b = protowire.AppendBytes(b, header.MerkleRoot[:])
	b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(header.Timestamp))
	b = protowire.AppendTag(b, fieldBits, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(header.Bits))
	b = protowire.AppendTag(b, fieldNonce, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(header.Nonce))
	return b
}

// UnmarshalBlockHeaderDTO decodes b produced by MarshalBlockHeaderDTO.
func UnmarshalBlockHeaderDTO(b []byte) (*BlockHeaderDTO, error) {
	dto := &BlockHeaderDTO{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad varint field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldHeight:
				dto.Height = int32(uint32(v))
			case fieldVersion:
				dto.Version = int32(uint32(v))
			case fieldTimestamp:
				dto.Timestamp = int64(v)
			case fieldBits:
				dto.Bits = uint32(v)
			case fieldNonce:
				dto.Nonce = uint32(v)
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad bytes field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldPrevBlock:
				if len(v) != chainhash.HashSize {
					return nil, fmt.Errorf("wire: prev_block has length %d, want %d", len(v), chainhash.HashSize)
				}
				copy(dto.PrevBlock[:], v)
			case fieldMerkleRoot:
				if len(v) != chainhash.HashSize {
					return nil, fmt.Errorf("wire: merkle_root has length %d, want %d", len(v), chainhash.HashSize)
				}
				copy(dto.MerkleRoot[:], v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: skip unknown field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return dto, nil
}

// Header reconstructs a core.BlockHeader from the DTO.
func (d *BlockHeaderDTO) Header() *core.BlockHeader {
	return &core.BlockHeader{
		Version:    d.Version,
		PrevBlock:  d.PrevBlock,
		MerkleRoot: d.MerkleRoot,
		Timestamp:  d.Timestamp,
		Bits:       d.Bits,
		Nonce:      d.Nonce,
	}
}
