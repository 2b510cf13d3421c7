package mvt

import (
	"bytes"
	"compress/gzip"
	"io"
)

// Decode decompresses a GZIP-framed blob and parses its MVT protobuf
// structure into a fully-owned Tile.
func Decode(blob []byte) (*Tile, error) {
	if len(blob) == 0 {
		return nil, newDecodeError(KindEmptyInput, ErrEmptyInput)
	}

	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, newDecodeError(KindGzip, err)
	}
	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, newDecodeError(KindGzip, err)
	}
	if err := gz.Close(); err != nil {
		return nil, newDecodeError(KindGzip, err)
	}

	t, err := unmarshalTile(raw)
	if err != nil {
		return nil, newDecodeError(KindProto, err)
	}
	return &t, nil
}

// Encode serializes a Tile to protobuf and GZIP-compresses the result.
// Infallible given a well-formed tile.
func Encode(t *Tile) []byte {
	raw := marshalTile(*t)

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	// Writes to a bytes.Buffer never fail.
	_, _ = w.Write(raw)
	_ = w.Close()
	return buf.Bytes()
}
