package audio

import (
	"bytes"
	"testing"
)

func TestRingBuffer_Write(t *testing.T) {
	rb := NewRingBuffer(10)

	if dropped := rb.Write([]byte{1, 2, 3, 4, 5}); dropped != 0 {
		t.Errorf("Expected nothing dropped, got %d", dropped)
	}
	if rb.Available() != 5 {
		t.Errorf("Expected available 5, got %d", rb.Available())
	}

	rb.Write([]byte{6, 7, 8})
	if rb.Available() != 8 {
		t.Errorf("Expected available 8, got %d", rb.Available())
	}
}

func TestRingBuffer_OverwritesOldest(t *testing.T) {
	rb := NewRingBuffer(4)

	rb.Write([]byte{1, 2, 3})
	dropped := rb.Write([]byte{4, 5, 6})
	if dropped != 2 {
		t.Errorf("Expected 2 dropped bytes, got %d", dropped)
	}
	if !rb.IsFull() {
		t.Error("Expected buffer to be full")
	}

	if got := rb.Drain(); !bytes.Equal(got, []byte{3, 4, 5, 6}) {
		t.Errorf("Expected newest 4 bytes, got %v", got)
	}
	if rb.Available() != 0 {
		t.Error("Expected Drain to empty the buffer")
	}
}

func TestRingBuffer_WriteLargerThanBuffer(t *testing.T) {
	rb := NewRingBuffer(3)

	dropped := rb.Write([]byte{1, 2, 3, 4, 5})
	if dropped != 2 {
		t.Errorf("Expected 2 dropped bytes, got %d", dropped)
	}
	if got := rb.Drain(); !bytes.Equal(got, []byte{3, 4, 5}) {
		t.Errorf("Expected tail of the write, got %v", got)
	}
}

func TestRingBuffer_Read(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Write([]byte{1, 2, 3, 4, 5})

	buf := make([]byte, 3)
	n := rb.Read(buf)
	if n != 3 || !bytes.Equal(buf, []byte{1, 2, 3}) {
		t.Errorf("Expected [1 2 3], got %v (n=%d)", buf[:n], n)
	}
	if rb.Available() != 2 {
		t.Errorf("Expected 2 remaining, got %d", rb.Available())
	}

	buf = make([]byte, 10)
	if n := rb.Read(buf); n != 2 {
		t.Errorf("Expected to read 2 bytes, got %d", n)
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Write([]byte{1, 2, 3})
	rb.Clear()

	if rb.Available() != 0 {
		t.Errorf("Expected empty buffer after Clear, got %d", rb.Available())
	}
	if len(rb.Drain()) != 0 {
		t.Error("Expected Drain of a cleared buffer to be empty")
	}
}
