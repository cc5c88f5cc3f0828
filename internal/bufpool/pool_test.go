package bufpool

import "testing"

func TestGetSizeBuckets(t *testing.T) {
	tests := []struct {
		name        string
		requestSize uint32
		expectCap   int
	}{
		{"2KB bucket - exact", 2 * 1024, 2 * 1024},
		{"2KB bucket - MTU-sized", 1316, 2 * 1024},
		{"8KB bucket - smaller", 5 * 1024, 8 * 1024},
		{"32KB bucket - smaller", 20 * 1024, 32 * 1024},
		{"64KB bucket - exact", 64 * 1024, 64 * 1024},
		{"oversized - unpooled", 128 * 1024, 128 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := Get(tt.requestSize)
			if len(buf) != int(tt.requestSize) {
				t.Errorf("Get(%d) returned len=%d, want %d", tt.requestSize, len(buf), tt.requestSize)
			}
			if cap(buf) != tt.expectCap {
				t.Errorf("Get(%d) returned cap=%d, want %d", tt.requestSize, cap(buf), tt.expectCap)
			}
			Put(buf)
		})
	}
}

func TestPutNonStandardCapDoesNotPanic(t *testing.T) {
	buf := make([]byte, 100*1024)
	Put(buf)
}

func BenchmarkGet2KB(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := Get(2 * 1024)
		Put(buf)
	}
}

func BenchmarkGet64KB(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := Get(64 * 1024)
		Put(buf)
	}
}
