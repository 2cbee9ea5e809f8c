package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// WireVersion is the current image format version. Decoding rejects
// anything else.
const WireVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// wireInstruction carries one instruction as its mnemonic and
// canonical operand rendering; the operand grammar is the same one
// the disassembler uses, so the image stays deterministic and
// human-auditable.
type wireInstruction struct {
	Op      string `cbor:"1,keyasint"`
	Operand string `cbor:"2,keyasint,omitempty"`
}

type wireSequence struct {
	Version   int               `cbor:"1,keyasint"`
	Name      string            `cbor:"2,keyasint,omitempty"`
	SlotCount int               `cbor:"3,keyasint"`
	Instrs    []wireInstruction `cbor:"4,keyasint"`
}

// Marshal encodes a sequence to its canonical CBOR image. Source
// spans do not travel on the wire.
func Marshal(seq *Sequence) ([]byte, error) {
	ws := wireSequence{
		Version:   WireVersion,
		Name:      seq.name,
		SlotCount: seq.slotCount,
		Instrs:    make([]wireInstruction, len(seq.instrs)),
	}
	for i := range seq.instrs {
		in := &seq.instrs[i]
		ws.Instrs[i] = wireInstruction{Op: in.op.String(), Operand: in.OperandText()}
	}
	return cborEncMode.Marshal(&ws)
}

// Unmarshal decodes a CBOR image, revalidating the operand/op pairing
// and the jump-target invariant before handing the sequence out.
func Unmarshal(data []byte) (*Sequence, error) {
	var ws wireSequence
	if err := cbor.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal sequence: %w", err)
	}
	if ws.Version != WireVersion {
		return nil, fmt.Errorf("bytecode: unsupported wire version %d (want %d)", ws.Version, WireVersion)
	}
	instrs := make([]Instruction, len(ws.Instrs))
	for i, wi := range ws.Instrs {
		op, ok := OpByName(wi.Op)
		if !ok {
			return nil, fmt.Errorf("bytecode: unmarshal sequence: instruction %d: unknown op %q", i, wi.Op)
		}
		in, err := parseOperand(op, wi.Operand)
		if err != nil {
			return nil, fmt.Errorf("bytecode: unmarshal sequence: instruction %d: %w", i, err)
		}
		instrs[i] = in
	}
	seq := NewSequence(ws.Name, instrs, ws.SlotCount)
	if err := seq.Validate(); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal sequence: %w", err)
	}
	return seq, nil
}
