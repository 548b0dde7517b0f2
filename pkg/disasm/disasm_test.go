package disasm

import "testing"

type flatMem []byte

func (m flatMem) Read(addr uint16, isExecution bool) byte {
	if int(addr) >= len(m) {
		return 0
	}
	return m[addr]
}

func newMem(bytes ...byte) flatMem {
	buf := make(flatMem, 0x10000)
	copy(buf, bytes)
	return buf
}

func TestDecodeNOP(t *testing.T) {
	mem := newMem(0x00)
	ins := Decode(mem, 0)
	if ins.Mnemonic != "nop" || ins.Length() != 1 || ins.TStates != 4 {
		t.Fatalf("unexpected decode: %+v", ins)
	}
}

func TestDecodeLDBCImmediate(t *testing.T) {
	mem := newMem(0x01, 0x34, 0x12)
	ins := Decode(mem, 0)
	if ins.Mnemonic != "ld bc,#1234" {
		t.Fatalf("mnemonic = %q, want ld bc,#1234", ins.Mnemonic)
	}
	if ins.Length() != 3 {
		t.Fatalf("length = %d, want 3", ins.Length())
	}
}

// TestFDCBDisassembly covers scenario S5: FD CB 02 5E disassembles as
// "bit 3,(iy+#02)" with length 4.
func TestFDCBDisassembly(t *testing.T) {
	mem := newMem(0xFD, 0xCB, 0x02, 0x5E)
	ins := Decode(mem, 0)
	if ins.Mnemonic != "bit 3,(iy+#02)" {
		t.Fatalf("mnemonic = %q, want bit 3,(iy+#02)", ins.Mnemonic)
	}
	if ins.Length() != 4 {
		t.Fatalf("length = %d, want 4", ins.Length())
	}
	if ins.Prefix != PrefixFDCB {
		t.Fatalf("prefix = %v, want FDCB", ins.Prefix)
	}
}

func TestDDCBNegativeDisplacement(t *testing.T) {
	mem := newMem(0xDD, 0xCB, 0xFE, 0x46) // displacement -2
	ins := Decode(mem, 0)
	if ins.Mnemonic != "bit 0,(ix-#02)" {
		t.Fatalf("mnemonic = %q, want bit 0,(ix-#02)", ins.Mnemonic)
	}
}

// TestRelativeJumpTarget covers scenario S7: the target of a relative
// jump is addr + length + displacement (mod 0x10000).
func TestRelativeJumpTarget(t *testing.T) {
	const addr = 0x8000
	mem := newMem()
	mem[addr] = 0x18   // jr +5, at address 0x8000
	mem[addr+1] = 0x05
	out := DisassembleWithRuntime(mem, addr, ConditionState{})
	if !out.HasTarget {
		t.Fatal("relative jump missing target annotation")
	}
	want := uint16(addr + 2 + 5)
	if out.TargetAddr != want {
		t.Fatalf("target = %#04x, want %#04x", out.TargetAddr, want)
	}
}

func TestDJNZBackwardsTarget(t *testing.T) {
	mem := make(flatMem, 0x10000)
	mem[0x9000] = 0x10 // djnz
	mem[0x9001] = 0xFE // -2
	out := DisassembleWithRuntime(mem, 0x9000, ConditionState{B: 3})
	want := uint16(0x9000 + 2 - 2)
	if out.TargetAddr != want {
		t.Fatalf("target = %#04x, want %#04x", out.TargetAddr, want)
	}
	if !out.HasPrediction || !out.ConditionMet {
		t.Fatal("djnz with B=3 should predict taken (B-1=2 != 0)")
	}
}

func TestConditionPrediction(t *testing.T) {
	mem := newMem(0xCA, 0x00, 0x90) // jp z,#9000
	out := DisassembleWithRuntime(mem, 0, ConditionState{Zero: true})
	if !out.HasPrediction || !out.ConditionMet {
		t.Fatal("jp z with Zero=true should predict taken")
	}
	out2 := DisassembleWithRuntime(mem, 0, ConditionState{Zero: false})
	if out2.ConditionMet {
		t.Fatal("jp z with Zero=false should predict not taken")
	}
}

func TestIXHalfRegisterSubstitution(t *testing.T) {
	mem := newMem(0xDD, 0x7C) // ld a,ixh (undocumented)
	ins := Decode(mem, 0)
	if ins.Mnemonic != "ld a,ixh" {
		t.Fatalf("mnemonic = %q, want ld a,ixh", ins.Mnemonic)
	}
}

func TestIXIndexedMemoryOperandKeepsPlainHRegister(t *testing.T) {
	// DD 74 = LD (IX+d),H: the (HL) operand becomes indexed, but the H
	// source register is NOT converted to IXH (documented quirk).
	mem := newMem(0xDD, 0x74, 0x03)
	ins := Decode(mem, 0)
	if ins.Mnemonic != "ld (ix+#03),h" {
		t.Fatalf("mnemonic = %q, want ld (ix+#03),h", ins.Mnemonic)
	}
}

func TestRSTTargetExtraction(t *testing.T) {
	mem := newMem()
	mem[0x100] = 0xFF // rst 38h
	ins := Decode(mem, 0x100)
	if ins.Mnemonic != "rst #38" {
		t.Fatalf("mnemonic = %q, want rst #38", ins.Mnemonic)
	}
	target, ok := callTarget(ins)
	if !ok || target != 0x38 {
		t.Fatalf("callTarget = %#x,%v want 0x38,true", target, ok)
	}
}

func TestShouldStepOverCallAndRST(t *testing.T) {
	mem := newMem(0xCD, 0x00, 0x90) // call #9000
	call := Decode(mem, 0)
	if !ShouldStepOver(call) {
		t.Fatal("CALL should be a step-over candidate")
	}

	mem2 := newMem(0xC9) // ret
	ret := Decode(mem2, 0)
	if ShouldStepOver(ret) {
		t.Fatal("RET should not be a step-over candidate")
	}
}

func TestStepOverExclusionRangesCoversSimpleCall(t *testing.T) {
	mem := make(flatMem, 0x10000)
	// at 0x0000: CALL 0x9000
	mem[0] = 0xCD
	mem[1] = 0x00
	mem[2] = 0x90
	// at 0x9000: a few instructions then RET
	mem[0x9000] = 0x00 // nop
	mem[0x9001] = 0x00 // nop
	mem[0x9002] = 0xC9 // ret

	ranges := StepOverExclusionRanges(mem, 0, 100, 8)
	if len(ranges) == 0 {
		t.Fatal("expected at least one exclusion range")
	}

	foundCall := false
	for _, r := range ranges {
		if r.Start == 0 && r.End == 3 {
			foundCall = true
		}
	}
	if !foundCall {
		t.Fatalf("missing call-site range in %v", ranges)
	}
}

func TestNextInstructionAddrWraps(t *testing.T) {
	mem := newMem(0x00)
	ins := Decode(mem, 0xFFFF)
	if got := NextInstructionAddr(0xFFFF, ins); got != 0 {
		t.Fatalf("NextInstructionAddr wraparound = %#x, want 0", got)
	}
}
