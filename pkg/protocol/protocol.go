// Package protocol implements the gotalk wire framing.
//
// Every application exchange is one frame: a 2-byte big-endian unsigned
// length followed by that many bytes of UTF-8 text. The framing must be
// preserved byte-for-byte for interoperability with existing clients.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize is the largest payload expressible with a 2-byte length prefix.
const MaxFrameSize = 65535

// Server-issued control tokens. Clients key off these to drive their own
// state machines; everything else is display text.
const (
	TokenExitOK = "/exitok"
	TokenAuthOK = "/authok" // followed by " <name>"
	TokenRegOK  = "/regok"  // followed by " <name>"
)

// WriteFrame writes one length-prefixed text frame to w.
func WriteFrame(w io.Writer, text string) error {
	data := []byte(text)
	if len(data) > MaxFrameSize {
		return fmt.Errorf("protocol: frame too large: %d bytes", len(data))
	}

	buf := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(buf[:2], uint16(len(data)))
	copy(buf[2:], data)

	// Single write so a frame is never interleaved with a concurrent sender's.
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed text frame from r. It returns io.EOF
// unwrapped when the stream ends cleanly between frames.
func ReadFrame(r io.Reader) (string, error) {
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		if err == io.EOF {
			return "", io.EOF
		}
		return "", fmt.Errorf("protocol: read length: %w", err)
	}
	length := binary.BigEndian.Uint16(lenBuf)

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", fmt.Errorf("protocol: read payload: %w", err)
	}
	return string(data), nil
}
