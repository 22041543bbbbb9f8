package custody

import (
	"encoding/binary"
	"fmt"
)

// Opcode selects the operation of an instruction.
type Opcode uint8

// The available opcodes.
const (
	OpLock   Opcode = 0
	OpUnlock Opcode = 1
)

// String returns the name of the opcode.
func (o Opcode) String() string {
	switch o {
	case OpLock:
		return "lock"
	case OpUnlock:
		return "unlock"
	default:
		return fmt.Sprintf("opcode(%d)", uint8(o))
	}
}

// InstructionSize is the size of an encoded instruction.
const InstructionSize = 1 + 8

// Instruction is a single operation requested by a user.
type Instruction struct {
	Op     Opcode
	Amount uint64
}

// ParseInstruction will parse an instruction payload. Bytes beyond the amount
// are ignored.
func ParseInstruction(data []byte) (Instruction, error) {
	// check length
	if len(data) < InstructionSize {
		return Instruction{}, fmt.Errorf("payload has %d bytes, want %d: %w", len(data), InstructionSize, ErrTruncatedInstruction)
	}

	// check opcode
	op := Opcode(data[0])
	if op != OpLock && op != OpUnlock {
		return Instruction{}, fmt.Errorf("%s: %w", op, ErrUnknownOpcode)
	}

	return Instruction{
		Op:     op,
		Amount: binary.LittleEndian.Uint64(data[1:InstructionSize]),
	}, nil
}

// Encode will encode the instruction.
func (i Instruction) Encode() []byte {
	buf := make([]byte, InstructionSize)
	buf[0] = byte(i.Op)
	binary.LittleEndian.PutUint64(buf[1:], i.Amount)
	return buf
}
