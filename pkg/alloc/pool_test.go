package alloc

import "testing"

func TestAllocReturnsZeroedBlockOfRequestedLength(t *testing.T) {
	p := New()
	block := p.Alloc(10)
	if len(block) != 10 {
		t.Fatalf("expected length 10, got %d", len(block))
	}
	for i, b := range block {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, b)
		}
	}
}

func TestAllocZeroOrNegativeReturnsNil(t *testing.T) {
	p := New()
	if got := p.Alloc(0); got != nil {
		t.Fatalf("expected nil for n=0, got %#v", got)
	}
	if got := p.Alloc(-1); got != nil {
		t.Fatalf("expected nil for n=-1, got %#v", got)
	}
}

func TestFreeBlockIsReusedByNextAllocOfSameClass(t *testing.T) {
	p := New()
	block := p.Alloc(10)
	block[0] = 0xFF
	p.Free(block)

	if stat := p.Stat(); stat.FreeBytes == 0 {
		t.Fatalf("expected non-zero free bytes after Free, got %+v", stat)
	}

	reused := p.Alloc(10)
	if reused[0] != 0 {
		t.Fatalf("expected reused block to be zeroed, got %d", reused[0])
	}
	if stat := p.Stat(); stat.FreeBytes != 0 {
		t.Fatalf("expected free list drained after reuse, got %+v", stat)
	}
}

func TestAllocAboveThresholdBypassesPool(t *testing.T) {
	p := New()
	block := p.Alloc(MaxPooledSize + 1)
	if len(block) != MaxPooledSize+1 {
		t.Fatalf("expected length %d, got %d", MaxPooledSize+1, len(block))
	}
	if stat := p.Stat(); stat.Arenas != 0 {
		t.Fatalf("expected oversized alloc to skip arenas, got %+v", stat)
	}
}

func TestFreeIgnoresNilAndOversizedBlocks(t *testing.T) {
	p := New()
	p.Free(nil)
	p.Free(make([]byte, MaxPooledSize+1))
	if stat := p.Stat(); stat.FreeBytes != 0 {
		t.Fatalf("expected no free bytes recorded, got %+v", stat)
	}
}

func TestSizeClassRoundsUpAboveCeiling(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{1, 1},
		{roundCeiling, roundCeiling},
		{roundCeiling + 1, roundCeiling * 2},
		{100, 128},
		{129, 256},
	}
	for _, c := range cases {
		if got := sizeClass(c.n); got != c.want {
			t.Errorf("sizeClass(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestBumpAllocationGrowsANewArenaWhenExhausted(t *testing.T) {
	p := New()
	// arenaSize is 64KiB; request enough 1 KiB-class blocks to force a
	// second arena without ever hitting a free list.
	const class = 1024
	for i := 0; i < 100; i++ {
		p.Alloc(class)
	}
	if stat := p.Stat(); stat.Arenas < 2 {
		t.Fatalf("expected at least 2 arenas after exhausting the first, got %+v", stat)
	}
}

func TestAllocDoesNotAliasDistinctBlocks(t *testing.T) {
	p := New()
	a := p.Alloc(16)
	b := p.Alloc(16)
	a[0] = 1
	if b[0] != 0 {
		t.Fatalf("expected distinct backing arrays, writing to a leaked into b")
	}
}
