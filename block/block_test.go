package block

import (
	"bytes"
	"testing"
)

func makeRaster(w, h int) []byte {
	buf := make([]byte, w*h*Channels)
	for i := range buf {
		buf[i] = byte(i*7 + 3)
	}
	return buf
}

func TestGridFor(t *testing.T) {
	for _, tc := range []struct {
		name      string
		w, h, bs  int
		wantX     int
		wantY     int
		wantCount int
	}{
		{name: "exact", w: 4, h: 4, bs: 2, wantX: 2, wantY: 2, wantCount: 4},
		{name: "remainder", w: 5, h: 3, bs: 2, wantX: 3, wantY: 2, wantCount: 6},
		{name: "block_larger_than_image", w: 3, h: 2, bs: 10, wantX: 1, wantY: 1, wantCount: 1},
		{name: "single_pixel", w: 1, h: 1, bs: 1, wantX: 1, wantY: 1, wantCount: 1},
		{name: "asymmetric", w: 6, h: 2, bs: 2, wantX: 3, wantY: 1, wantCount: 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := GridFor(tc.w, tc.h, tc.bs)
			if g.CountX != tc.wantX || g.CountY != tc.wantY {
				t.Fatalf("GridFor(%d,%d,%d) = %+v, want {%d %d}", tc.w, tc.h, tc.bs, g, tc.wantX, tc.wantY)
			}
			if g.Count() != tc.wantCount {
				t.Fatalf("Count() = %d, want %d", g.Count(), tc.wantCount)
			}
		})
	}
}

func TestActualSize(t *testing.T) {
	if got := ActualSize(0, 2, 5, 3); got != 2 {
		t.Fatalf("interior cell: got %d want 2", got)
	}
	if got := ActualSize(2, 2, 5, 3); got != 1 {
		t.Fatalf("edge cell: got %d want 1", got)
	}
	if got := ActualSize(0, 10, 3, 1); got != 3 {
		t.Fatalf("oversized block: got %d want 3", got)
	}
}

// 4x4 RGBA, blockSize 2: four 16-byte blocks; block 0 is the top-left quadrant.
func TestSplit_FourByFour(t *testing.T) {
	buf := makeRaster(4, 4)
	blocks := Split(buf, 4, 4, 2)
	if len(blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(blocks))
	}
	for i, b := range blocks {
		if len(b) != 16 {
			t.Fatalf("block %d: expected 16 bytes, got %d", i, len(b))
		}
	}

	var want []byte
	want = append(want, buf[0:8]...)   // row 0, pixels 0-1
	want = append(want, buf[16:24]...) // row 1, pixels 0-1
	if !bytes.Equal(blocks[0], want) {
		t.Fatalf("block 0 mismatch:\n got %v\nwant %v", blocks[0], want)
	}

	got := Assemble(blocks, 4, 4, 2)
	if !bytes.Equal(got, buf) {
		t.Fatalf("reassembled raster differs from original")
	}
}

func TestSplit_ByteLengthsSumToRaster(t *testing.T) {
	for _, tc := range []struct{ w, h, bs int }{
		{1, 1, 1}, {1, 1, 4}, {5, 3, 2}, {7, 9, 3}, {16, 16, 4}, {17, 5, 16}, {3, 11, 5},
	} {
		blocks := Split(makeRaster(tc.w, tc.h), tc.w, tc.h, tc.bs)
		total := 0
		for _, b := range blocks {
			total += len(b)
		}
		if want := tc.w * tc.h * Channels; total != want {
			t.Fatalf("%dx%d bs=%d: block bytes sum %d, want %d", tc.w, tc.h, tc.bs, total, want)
		}
		if len(blocks) != Count(tc.w, tc.h, tc.bs) {
			t.Fatalf("%dx%d bs=%d: %d blocks, grid says %d", tc.w, tc.h, tc.bs, len(blocks), Count(tc.w, tc.h, tc.bs))
		}
	}
}

func TestSplitAssemble_RoundTrip(t *testing.T) {
	for _, tc := range []struct{ w, h, bs int }{
		{1, 1, 1}, {2, 3, 2}, {5, 3, 2}, {7, 9, 3}, {10, 1, 4}, {1, 10, 4}, {13, 13, 5}, {4, 4, 8},
	} {
		buf := makeRaster(tc.w, tc.h)
		got := Assemble(Split(buf, tc.w, tc.h, tc.bs), tc.w, tc.h, tc.bs)
		if !bytes.Equal(got, buf) {
			t.Fatalf("%dx%d bs=%d: round trip mismatch", tc.w, tc.h, tc.bs)
		}
	}
}

// Only 2 of 4 blocks: the remaining quadrants stay zero.
func TestAssemble_FewerBlocksLeavesZeros(t *testing.T) {
	buf := makeRaster(4, 4)
	blocks := Split(buf, 4, 4, 2)
	got := Assemble(blocks[:2], 4, 4, 2)

	want := make([]byte, len(buf))
	copy(want[0:16], buf[0:16])   // row 0
	copy(want[16:32], buf[16:32]) // row 1
	if !bytes.Equal(got, want) {
		t.Fatalf("partial assemble mismatch:\n got %v\nwant %v", got, want)
	}
	for i := 32; i < len(got); i++ {
		if got[i] != 0 {
			t.Fatalf("byte %d: expected 0 in untouched area, got %d", i, got[i])
		}
	}
}

func TestExtract_OutOfBoundsReadsZero(t *testing.T) {
	buf := makeRaster(2, 2)
	// Height unknown: two rows are requested from a one-row tail.
	got := Extract(buf[:8], 2, UnknownHeight, 0, 0, 2)
	if len(got) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(got))
	}
	if !bytes.Equal(got[:8], buf[:8]) {
		t.Fatalf("first row mismatch")
	}
	for i := 8; i < 16; i++ {
		if got[i] != 0 {
			t.Fatalf("byte %d: expected zero for missing row, got %d", i, got[i])
		}
	}
}

func TestExtract_EdgeBlockIsSmaller(t *testing.T) {
	buf := makeRaster(3, 3)
	got := Extract(buf, 3, 3, 2, 2, 2)
	if len(got) != Channels {
		t.Fatalf("corner block: expected %d bytes, got %d", Channels, len(got))
	}
	if !bytes.Equal(got, buf[8*Channels:9*Channels]) {
		t.Fatalf("corner pixel mismatch")
	}
}

func TestPlace_DropsWritesPastEnd(t *testing.T) {
	target := make([]byte, 2*2*Channels)
	blk := bytes.Repeat([]byte{9}, 2*2*Channels)
	Place(target, blk, 2, 1, 1, 2, 2)

	// Only pixel (1,1) fits; everything else lands past the end and is dropped.
	for i := 0; i < 3*Channels; i++ {
		if target[i] != 0 {
			t.Fatalf("byte %d unexpectedly written", i)
		}
	}
	if !bytes.Equal(target[3*Channels:], []byte{9, 9, 9, 9}) {
		t.Fatalf("pixel (1,1) not written: %v", target[3*Channels:])
	}
}

func TestPlace_ShortBlockWritesZeros(t *testing.T) {
	target := bytes.Repeat([]byte{0xff}, 2*1*Channels)
	Place(target, []byte{1, 2, 3, 4}, 2, 0, 0, 2, 1)
	want := []byte{1, 2, 3, 4, 0, 0, 0, 0}
	if !bytes.Equal(target, want) {
		t.Fatalf("got %v want %v", target, want)
	}
}
