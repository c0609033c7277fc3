package rotor

import "testing"

// BenchmarkMap measures the per-character cost of the hot decode path.
func BenchmarkMap(b *testing.B) {
	r := New()
	r.Rotate(11)
	msg := []byte("THE QUICK BROWN FOX JUMPS OVER THE LAZY DOG")

	b.SetBytes(int64(len(msg)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		for _, c := range msg {
			_ = r.Map(c)
		}
	}
}

func BenchmarkRotate(b *testing.B) {
	r := New()
	for i := 0; i < b.N; i++ {
		r.Rotate(i - 13)
	}
}
