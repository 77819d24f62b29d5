package tts

// DefaultBlockSize is the minimum outbound audio block size in bytes. At
// 16 kHz 16-bit mono this is half a second of audio, large enough to keep
// client-side jitter buffers fed without bursting the socket.
const DefaultBlockSize = 16 * 1024

// Rechunk coalesces provider audio output into blocks of at least blockSize
// bytes. The final block may be smaller; it carries whatever remains when the
// input channel closes. A blockSize of zero or less uses DefaultBlockSize.
//
// The returned channel is closed after the input channel closes and the
// remainder has been flushed.
func Rechunk(in <-chan []byte, blockSize int) <-chan []byte {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	out := make(chan []byte, 8)
	go func() {
		defer close(out)
		var pending []byte
		for chunk := range in {
			pending = append(pending, chunk...)
			for len(pending) >= blockSize {
				block := make([]byte, blockSize)
				copy(block, pending[:blockSize])
				pending = pending[blockSize:]
				out <- block
			}
		}
		if len(pending) > 0 {
			out <- pending
		}
	}()
	return out
}
