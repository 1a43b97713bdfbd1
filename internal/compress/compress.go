// Package compress packs sync payloads for the wire.
package compress

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/klauspost/compress/zstd"
)

// Compressor is a reversible byte transform.
type Compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// Zstd compresses with zstandard. A single value is safe for concurrent use.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// maxDecodedSize guards the server against decompression bombs.
const maxDecodedSize = 64 << 20

func NewZstd() (*Zstd, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("%w: new encoder: %v", common.ErrCompression, err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("%w: new decoder: %v", common.ErrCompression, err)
	}
	return &Zstd{enc: enc, dec: dec}, nil
}

func (z *Zstd) Compress(src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

func (z *Zstd) Decompress(src []byte) ([]byte, error) {
	out, err := z.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCompression, err)
	}
	return out, nil
}

func (z *Zstd) Close() {
	z.dec.Close()
	_ = z.enc.Close()
}

// EncodeJSON marshals v and compresses the result.
func EncodeJSON(c Compressor, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal: %v", common.ErrCompression, err)
	}
	out, err := c.Compress(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCompression, err)
	}
	return out, nil
}

// DecodeJSON decompresses b and unmarshals it into v.
func DecodeJSON(c Compressor, b []byte, v any) error {
	raw, err := c.Decompress(b)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", common.ErrCompression, err)
	}
	return nil
}
