package helpers

import (
	"io"
)

// WriteAll retries short writes until b is fully written or w fails.
// Serial drivers may accept less than a frame per call.
func WriteAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}
