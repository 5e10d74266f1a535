package timer

import "testing"

func TestDIV_CountsHighByte(t *testing.T) {
	tm := New()
	tm.Step(255)
	if tm.Read(0x04) != 0 {
		t.Fatalf("DIV got %d want 0 before 256 cycles", tm.Read(0x04))
	}
	tm.Step(1)
	if tm.Read(0x04) != 1 {
		t.Fatalf("DIV got %d want 1 after 256 cycles", tm.Read(0x04))
	}
}

func TestDIV_WriteResets(t *testing.T) {
	tm := New()
	tm.Step(1000)
	tm.Write(0x04, 0x5A) // any value resets
	if tm.Read(0x04) != 0 {
		t.Fatalf("DIV got %d want 0 after write", tm.Read(0x04))
	}
	tm.Step(255)
	if tm.Read(0x04) != 0 {
		t.Fatalf("internal counter not fully reset")
	}
}

func TestTIMA_DisabledDoesNotTick(t *testing.T) {
	tm := New()
	tm.Write(0x07, 0x01) // period select without enable bit
	tm.Step(4096)
	if tm.TIMA != 0 {
		t.Fatalf("TIMA ticked while disabled: %d", tm.TIMA)
	}
}

func TestTIMA_OverflowReloadAndIRQ(t *testing.T) {
	tm := New()
	tm.Write(0x07, 0x05) // enabled, period 16
	tm.Write(0x06, 0xFE) // TMA
	tm.Write(0x05, 0xFE) // TIMA

	tm.Step(16)
	if tm.TIMA != 0xFF || tm.OverflowIRQ {
		t.Fatalf("after 16 cycles TIMA=%#02x irq=%t; want 0xff false", tm.TIMA, tm.OverflowIRQ)
	}
	tm.Step(16)
	if tm.TIMA != 0xFE {
		t.Fatalf("after overflow TIMA=%#02x want TMA reload 0xfe", tm.TIMA)
	}
	if !tm.OverflowIRQ {
		t.Fatalf("overflow should raise the timer IRQ pulse")
	}
	tm.Step(4)
	if tm.OverflowIRQ {
		t.Fatalf("IRQ pulse must clear on the next step")
	}
}

func TestTAC_Periods(t *testing.T) {
	for sel, period := range map[byte]int{0x00: 1024, 0x01: 16, 0x02: 64, 0x03: 256} {
		tm := New()
		tm.Write(0x07, 0x04|sel)
		tm.Step(period - 1)
		if tm.TIMA != 0 {
			t.Fatalf("sel %d: TIMA ticked early", sel)
		}
		tm.Step(1)
		if tm.TIMA != 1 {
			t.Fatalf("sel %d: TIMA got %d want 1 after %d cycles", sel, tm.TIMA, period)
		}
	}
}
