package serialization

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string                 `json:"name" msgpack:"name"`
	Count int                    `json:"count" msgpack:"count"`
	Data  map[string]interface{} `json:"data" msgpack:"data"`
}

func samplePayload() payload {
	return payload{
		Name:  "checkpoint",
		Count: 7,
		Data:  map[string]interface{}{"host": "db-1"},
	}
}

func TestRoundTripConfigurations(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	tests := []struct {
		name   string
		config Config
	}{
		{"json none", Config{Codec: JSONCodec{}, Compression: CompressionNone}},
		{"json gzip", Config{Codec: JSONCodec{}, Compression: CompressionGzip}},
		{"msgpack zstd", Config{Codec: MsgPackCodec{}, Compression: CompressionZstd}},
		{"msgpack zstd encrypted", Config{Codec: MsgPackCodec{}, Compression: CompressionZstd, EncryptKey: key}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.config)
			data, err := s.Marshal(samplePayload())
			require.NoError(t, err)

			var got payload
			require.NoError(t, s.Unmarshal(data, &got))
			assert.Equal(t, "checkpoint", got.Name)
			assert.Equal(t, 7, got.Count)
		})
	}
}

func TestDefaultSerializer(t *testing.T) {
	s := Default()
	data, err := s.Marshal(samplePayload())
	require.NoError(t, err)
	assert.Equal(t, byte(0x52), data[0])

	var got payload
	require.NoError(t, s.Unmarshal(data, &got))
	assert.Equal(t, "checkpoint", got.Name)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	s := Default()
	var got payload
	assert.ErrorIs(t, s.Unmarshal([]byte{1, 2, 3}, &got), ErrNotAnEnvelope)
	assert.ErrorIs(t, s.Unmarshal([]byte("not an envelope at all"), &got), ErrNotAnEnvelope)
}

func TestUnmarshalRejectsUnknownVersion(t *testing.T) {
	s := Default()
	data, err := s.Marshal(samplePayload())
	require.NoError(t, err)
	data[1] = 99

	var got payload
	assert.ErrorIs(t, s.Unmarshal(data, &got), ErrUnsupportedVersion)
}

func TestUnmarshalRejectsUnknownCodec(t *testing.T) {
	s := Default()
	data, err := s.Marshal(samplePayload())
	require.NoError(t, err)
	data[2] = 42

	var got payload
	assert.ErrorIs(t, s.Unmarshal(data, &got), ErrUnknownCodec)
}

func TestEncryptedEnvelopeNeedsKey(t *testing.T) {
	key := bytes.Repeat([]byte{0x07}, 32)
	enc := New(Config{Codec: JSONCodec{}, EncryptKey: key})
	data, err := enc.Marshal(samplePayload())
	require.NoError(t, err)

	var got payload
	plain := New(Config{Codec: JSONCodec{}})
	assert.ErrorIs(t, plain.Unmarshal(data, &got), ErrMissingKey)

	wrongKey := bytes.Repeat([]byte{0x08}, 32)
	wrong := New(Config{Codec: JSONCodec{}, EncryptKey: wrongKey})
	assert.Error(t, wrong.Unmarshal(data, &got))
}

func TestCrossCodecRead(t *testing.T) {
	// A reader configured for msgpack can still open a json envelope; the
	// header names the codec.
	writer := New(Config{Codec: JSONCodec{}, Compression: CompressionGzip})
	data, err := writer.Marshal(samplePayload())
	require.NoError(t, err)

	reader := Default()
	var got payload
	require.NoError(t, reader.Unmarshal(data, &got))
	assert.Equal(t, "checkpoint", got.Name)
}
