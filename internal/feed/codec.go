package feed

import (
	"bytes"
	"io"

	"eddn-ingester/internal/event"
	"eddn-ingester/internal/shared/errors"
	"eddn-ingester/internal/shared/jsoncodec"

	"github.com/klauspost/compress/zlib"
)

// maxFrameSize caps the inflated size of one frame.
const maxFrameSize = 8 << 20

// Decode inflates a zlib frame and parses the JSON envelope. When inflation
// succeeds but parsing fails, the returned envelope still carries Raw so the
// rejection can be audited with its payload.
func Decode(frame []byte) (*event.Envelope, error) {
	reader, err := zlib.NewReader(bytes.NewReader(frame))
	if err != nil {
		return nil, errors.WrapDecode("failed to open zlib frame", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxFrameSize+1))
	if err != nil {
		return nil, errors.WrapDecode("failed to inflate frame", err)
	}
	if len(data) > maxFrameSize {
		return nil, errors.Decodef("inflated frame exceeds %d bytes", maxFrameSize)
	}

	env := &event.Envelope{Raw: data}
	if err := jsoncodec.Unmarshal(data, env); err != nil {
		return env, errors.WrapDecode("failed to parse envelope", err)
	}

	if env.SchemaRef == "" {
		return env, errors.Decodef("envelope has no $schemaRef")
	}

	return env, nil
}

// Encode is the inverse of Decode, used by relays and tests.
func Encode(doc []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := zlib.NewWriter(&buf)
	if _, err := writer.Write(doc); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
