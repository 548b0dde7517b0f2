package trace

import (
	"strings"

	"github.com/unrealng/z80core/pkg/disasm"
)

// CPUView is the minimal register/bank surface LogIfControlFlow needs
// to classify a control-flow instruction and build its trace record,
// grounded on the original core's EmulatorContext/Z80Registers/Memory
// trio (core/src/emulator/memory/calltrace.cpp, LogIfControlFlow).
type CPUView interface {
	F() byte
	B() byte
	SP() uint16
	BankInfo(bank int) BankInfo
}

// LogIfControlFlow decodes the instruction at addr and, if it is a
// taken control-flow instruction, assembles and inserts its trace
// record. It reports whether a record was logged.
func (b *Buffer) LogIfControlFlow(cpu CPUView, mem disasm.MemReader, addr uint16, frame uint64) bool {
	f := cpu.F()
	cs := disasm.ConditionState{
		Zero:           f&0x40 != 0,
		Carry:          f&0x01 != 0,
		ParityOverflow: f&0x04 != 0,
		Sign:           f&0x80 != 0,
		B:              cpu.B(),
	}

	dec := disasm.DisassembleWithRuntime(mem, addr, cs)
	ins := dec.Instruction

	const interesting = disasm.FlagCall | disasm.FlagRST | disasm.FlagReturn |
		disasm.FlagDJNZ | disasm.FlagUnconditionalJump | disasm.FlagRelJump | disasm.FlagCondition
	if ins.Flags&interesting == 0 {
		return false
	}

	var (
		taken  bool
		typ    EventType
		target uint16
	)

	switch {
	case ins.Flags&disasm.FlagRST != 0:
		taken = true
		typ = RST
		target = uint16(ins.Opcode & 0x38)

	case ins.Flags&disasm.FlagDJNZ != 0:
		taken = dec.HasPrediction && dec.ConditionMet
		typ = DJNZ
		target = dec.TargetAddr

	case ins.Flags&disasm.FlagReturn != 0:
		if dec.HasPrediction {
			taken = dec.ConditionMet
		} else {
			taken = true
		}
		if strings.Contains(ins.Mnemonic, "reti") {
			typ = RETI
		} else {
			typ = RET
		}
		target = readWordFrom(mem, cpu.SP())

	case ins.Flags&disasm.FlagRelJump != 0:
		if dec.HasPrediction {
			taken = dec.ConditionMet
		} else {
			taken = true
		}
		typ = JR
		target = dec.TargetAddr

	case ins.Flags&(disasm.FlagCall|disasm.FlagUnconditionalJump|disasm.FlagCondition) != 0:
		if dec.HasPrediction {
			taken = dec.ConditionMet
		} else {
			taken = true
		}
		if ins.Flags&disasm.FlagCall != 0 {
			typ = CALL
		} else {
			typ = JP
		}
		target = absoluteTarget(ins)

	default:
		return false
	}

	if !taken {
		return false
	}

	ev := Event{
		M1PC:        addr,
		TargetAddr:  target,
		OpcodeBytes: append([]byte(nil), ins.Bytes...),
		Flags:       f,
		Type:        typ,
		SP:          cpu.SP(),
	}
	for i := 0; i < 4; i++ {
		ev.Banks[i] = cpu.BankInfo(i)
	}
	if typ == RET || typ == RETI {
		sp := cpu.SP()
		ev.StackTop[0] = readWordFrom(mem, sp)
		ev.StackTop[1] = readWordFrom(mem, sp+2)
		ev.StackTop[2] = readWordFrom(mem, sp+4)
	}

	b.SetFrame(frame)
	b.Insert(ev)
	return true
}

// absoluteTarget extracts a direct-address JP/CALL's trailing 16-bit
// little-endian operand: the last two bytes of the fully-assembled
// instruction, whatever prefix bytes preceded it.
func absoluteTarget(ins disasm.Instruction) uint16 {
	n := len(ins.Bytes)
	if n < 2 {
		return 0
	}
	return uint16(ins.Bytes[n-2]) | uint16(ins.Bytes[n-1])<<8
}

func readWordFrom(mem disasm.MemReader, addr uint16) uint16 {
	lo := mem.Read(addr, false)
	hi := mem.Read(addr+1, false)
	return uint16(hi)<<8 | uint16(lo)
}
