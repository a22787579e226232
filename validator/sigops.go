package validator

import "encoding/binary"

// Legacy script opcodes relevant to signature-operation counting. Only
// the handful needed to walk a script's push/opcode stream and recognize
// the four signature-check opcodes are named here; this package has no
// need for a full script interpreter (that lives behind ScriptVerifier).
const (
	opData1         = 0x01
	opPushData1Max  = 0x4b
	opPushData1     = 0x4c
	opPushData2     = 0x4d
	opPushData4     = 0x4e
	op1             = 0x51
	op16            = 0x60
	opCheckSig      = 0xac
	opCheckSigVer   = 0xad
	opCheckMulti    = 0xae
	opCheckMultiVer = 0xaf
)

// legacySigOpCount walks script counting OP_CHECKSIG-family opcodes. In
// inaccurate (legacy) mode every OP_CHECKMULTISIG* is charged the maximum
// of 20 sigops; accurate mode instead charges the small integer pushed
// immediately before it, per Bitcoin's P2SH sigop accounting.
func legacySigOpCount(script []byte, accurate bool) int {
	count := 0
	lastOpcode := byte(0)
	i := 0
	for i < len(script) {
		op := script[i]
		i++
		switch {
		case op >= opData1 && op <= opPushData1Max:
			i += int(op)
		case op == opPushData1:
			if i >= len(script) {
				return count
			}
			n := int(script[i])
			i += 1 + n
		case op == opPushData2:
			if i+2 > len(script) {
				return count
			}
			n := int(binary.LittleEndian.Uint16(script[i : i+2]))
			i += 2 + n
		case op == opPushData4:
			if i+4 > len(script) {
				return count
			}
			n := int(binary.LittleEndian.Uint32(script[i : i+4]))
			i += 4 + n
		case op == opCheckSig || op == opCheckSigVer:
			count++
		case op == opCheckMulti || op == opCheckMultiVer:
			if accurate && lastOpcode >= op1 && lastOpcode <= op16 {
				count += int(lastOpcode-op1) + 1
			} else {
				count += 20
			}
		}
		lastOpcode = op
	}
	return count
}

// LegacySigOpCount is the inaccurate consensus sigop count used by check
// steps that walk a script without knowledge of its redeeming context
// (spec §4.5 Stage A step 7).
func LegacySigOpCount(script []byte) int {
	return legacySigOpCount(script, false)
}

// isPayToScriptHash reports whether script is exactly OP_HASH160 <20
// bytes> OP_EQUAL, the standard P2SH template (BIP16).
func isPayToScriptHash(script []byte) bool {
	return len(script) == 23 &&
		script[0] == 0xa9 && script[1] == 0x14 && script[22] == 0x87
}

// p2shSigOpSurcharge computes the extra sigops contributed by spending a
// P2SH output, per spec §4.5 Stage C: parse the redeem script out of the
// spending input's final push and accurately count sigops within it.
func p2shSigOpSurcharge(prevOutScript, sigScript []byte) int {
	if !isPayToScriptHash(prevOutScript) {
		return 0
	}
	redeemScript := lastPush(sigScript)
	if redeemScript == nil {
		return 0
	}
	return legacySigOpCount(redeemScript, true)
}

// lastPush returns the data pushed by the final push opcode in script, or
// nil if script's final opcode is not a data push (an input with a
// non-push signature script cannot spend a P2SH output per policy, but
// consensus code is nonetheless defensive here).
func lastPush(script []byte) []byte {
	var last []byte
	i := 0
	for i < len(script) {
		op := script[i]
		i++
		switch {
		case op >= opData1 && op <= opPushData1Max:
			end := i + int(op)
			if end > len(script) {
				return last
			}
			last = script[i:end]
			i = end
		case op == opPushData1:
			if i >= len(script) {
				return last
			}
			n := int(script[i])
			i++
			end := i + n
			if end > len(script) {
				return last
			}
			last = script[i:end]
			i = end
		case op == opPushData2:
			if i+2 > len(script) {
				return last
			}
			n := int(binary.LittleEndian.Uint16(script[i : i+2]))
			i += 2
			end := i + n
			if end > len(script) {
				return last
			}
			last = script[i:end]
			i = end
		case op == opPushData4:
			if i+4 > len(script) {
				return last
			}
			n := int(binary.LittleEndian.Uint32(script[i : i+4]))
			i += 4
			end := i + n
			if end > len(script) {
				return last
			}
			last = script[i:end]
			i = end
		default:
			last = nil
		}
	}
	return last
}
