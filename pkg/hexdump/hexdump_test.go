package hexdump

import "testing"

// TestFormatDefault covers scenario S1's first case: default width and
// delimiter, no prefix.
func TestFormatDefault(t *testing.T) {
	got := Format([]byte{0x01, 0x02, 0x04, 0x08}, Options{})
	want := "01 02 04 08"
	if got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

// TestFormatDelimiterAndPrefix covers S1's second case: custom
// delimiter and prefix.
func TestFormatDelimiterAndPrefix(t *testing.T) {
	got := Format([]byte{0x01, 0x02, 0x04, 0x08}, Options{Delimiter: ", ", Prefix: "0x"})
	want := "0x01, 0x02, 0x04, 0x08"
	if got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

// TestFormatNineBytesOneLine covers S1's third case: 9 bytes with a
// "$" prefix still render on a single line since 9 < default width 16.
func TestFormatNineBytesOneLine(t *testing.T) {
	data := []byte{0x01, 0x02, 0x04, 0x08, 0x10, 0x20, 0x40, 0x80, 0xFF}
	got := Format(data, Options{Prefix: "$"})
	want := "$01 $02 $04 $08 $10 $20 $40 $80 $FF"
	if got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

func TestWidthClampedToBounds(t *testing.T) {
	if (Options{Width: 0}).normalized().Width != DefaultWidth {
		t.Fatal("zero width should default")
	}
	if (Options{Width: 1000}).normalized().Width != MaxWidth {
		t.Fatal("oversized width should clamp to MaxWidth")
	}
	if (Options{Width: -5}).normalized().Width != MinWidth {
		t.Fatal("negative width should clamp to MinWidth")
	}
}

func TestLinesSplitsAtWidth(t *testing.T) {
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}
	lines := Lines(data, Options{Width: 16})
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "00 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F" {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if lines[1] != "10 11 12 13" {
		t.Fatalf("line 1 = %q", lines[1])
	}
}

func TestFormatWord(t *testing.T) {
	if FormatWord(0x1234) != "1234" {
		t.Fatalf("FormatWord(0x1234) = %q", FormatWord(0x1234))
	}
	if FormatWord(0x0038) != "0038" {
		t.Fatalf("FormatWord(0x0038) = %q", FormatWord(0x0038))
	}
}
