package xindex

import "testing"

func TestGammaRoundTrip(t *testing.T) {
	values := []uint64{1, 2, 3, 4, 7, 8, 15, 16, 255, 256, 1 << 20, 1<<32 - 1}
	buf := &growBuffer{}
	w := NewBitWriter(buf)
	for _, v := range values {
		w.WriteGamma(v)
	}
	w.Pad()
	if err := w.Err(); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	r := NewBitReader(buf.Bytes(), 0, 0)
	for _, want := range values {
		got, err := r.ReadGamma()
		if err != nil {
			t.Fatalf("ReadGamma: %v", err)
		}
		if got != want {
			t.Fatalf("ReadGamma = %d, want %d", got, want)
		}
	}
}

func TestGammaNonNegHandlesZero(t *testing.T) {
	buf := &growBuffer{}
	w := NewBitWriter(buf)
	w.writeGammaNonNeg(0)
	w.writeGammaNonNeg(5)
	w.Pad()

	r := NewBitReader(buf.Bytes(), 0, 0)
	got, err := r.readGammaNonNeg()
	if err != nil || got != 0 {
		t.Fatalf("readGammaNonNeg = (%d, %v), want (0, nil)", got, err)
	}
	got, err = r.readGammaNonNeg()
	if err != nil || got != 5 {
		t.Fatalf("readGammaNonNeg = (%d, %v), want (5, nil)", got, err)
	}
}

func TestWriteGammaRejectsZero(t *testing.T) {
	buf := &growBuffer{}
	w := NewBitWriter(buf)
	w.WriteGamma(0)
	if w.Err() == nil {
		t.Fatal("expected error writing gamma(0)")
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	buf := &growBuffer{}
	w := NewBitWriter(buf)
	w.WriteBinary(5, 0b10110)
	w.WriteBinary(3, 0b101)
	w.Pad()

	r := NewBitReader(buf.Bytes(), 0, 0)
	got, err := r.ReadBinary(5)
	if err != nil || got != 0b10110 {
		t.Fatalf("ReadBinary(5) = (%d, %v)", got, err)
	}
	got, err = r.ReadBinary(3)
	if err != nil || got != 0b101 {
		t.Fatalf("ReadBinary(3) = (%d, %v)", got, err)
	}
}

func TestReadUnaryFailsOnTruncatedStream(t *testing.T) {
	r := NewBitReader([]byte{0x00}, 0, 0)
	if _, err := r.ReadUnary(); err == nil {
		t.Fatal("expected MalformedStreamError on unterminated unary code")
	}
}

func TestPositionAdvancesByBit(t *testing.T) {
	buf := &growBuffer{}
	w := NewBitWriter(buf)
	w.WriteBinary(3, 0b101)
	byteOff, bitOff := w.Position()
	if byteOff != 0 || bitOff != 3 {
		t.Fatalf("Position after 3 bits = (%d,%d), want (0,3)", byteOff, bitOff)
	}
}
