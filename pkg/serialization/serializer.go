// Package serialization provides the versioned binary envelope used for
// checkpoint persistence. A serialized blob is self-describing: a fixed
// header records the envelope version, codec and compression, so a saver
// can round-trip snapshots written by older engine builds.
package serialization

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Envelope layout: magic byte, version, codec id, compression id, flags,
// then the (optionally encrypted) payload.
const (
	magicByte       = 0x52 // 'R'
	envelopeVersion = 1
	headerLen       = 5

	flagEncrypted = 1 << 0
)

// Codec encodes and decodes snapshot payloads.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
	ID() byte
	Name() string
}

// Compression identifies the compression applied inside the envelope.
type Compression byte

const (
	CompressionNone Compression = 0
	CompressionGzip Compression = 1
	CompressionZstd Compression = 2
)

// Config holds serializer settings.
type Config struct {
	Codec       Codec
	Compression Compression
	// EncryptKey enables AES-256-GCM when 32 bytes long.
	EncryptKey []byte
}

// Serializer writes and reads versioned snapshot envelopes.
type Serializer struct {
	config Config
	codecs map[byte]Codec
}

// New creates a serializer; nil codec defaults to MessagePack.
func New(config Config) *Serializer {
	if config.Codec == nil {
		config.Codec = MsgPackCodec{}
	}
	s := &Serializer{config: config, codecs: map[byte]Codec{}}
	for _, c := range []Codec{JSONCodec{}, MsgPackCodec{}} {
		s.codecs[c.ID()] = c
	}
	return s
}

// Default returns the production configuration: msgpack + zstd.
func Default() *Serializer {
	return New(Config{Codec: MsgPackCodec{}, Compression: CompressionZstd})
}

// Marshal encodes, compresses, encrypts, and frames v into an envelope.
func (s *Serializer) Marshal(v interface{}) ([]byte, error) {
	payload, err := s.config.Codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("codec encoding failed: %w", err)
	}

	payload, err = compress(s.config.Compression, payload)
	if err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}

	var flags byte
	if len(s.config.EncryptKey) > 0 {
		payload, err = encrypt(s.config.EncryptKey, payload)
		if err != nil {
			return nil, fmt.Errorf("encryption failed: %w", err)
		}
		flags |= flagEncrypted
	}

	out := make([]byte, headerLen, headerLen+len(payload))
	out[0] = magicByte
	out[1] = envelopeVersion
	out[2] = s.config.Codec.ID()
	out[3] = byte(s.config.Compression)
	out[4] = flags
	return append(out, payload...), nil
}

// Unmarshal parses an envelope and decodes its payload into v.
func (s *Serializer) Unmarshal(data []byte, v interface{}) error {
	if len(data) < headerLen || data[0] != magicByte {
		return ErrNotAnEnvelope
	}
	if data[1] != envelopeVersion {
		return fmt.Errorf("%w: version %d", ErrUnsupportedVersion, data[1])
	}
	codec, ok := s.codecs[data[2]]
	if !ok {
		return fmt.Errorf("%w: codec id %d", ErrUnknownCodec, data[2])
	}
	compression := Compression(data[3])
	flags := data[4]
	payload := data[headerLen:]

	var err error
	if flags&flagEncrypted != 0 {
		if len(s.config.EncryptKey) == 0 {
			return ErrMissingKey
		}
		payload, err = decrypt(s.config.EncryptKey, payload)
		if err != nil {
			return fmt.Errorf("decryption failed: %w", err)
		}
	}

	payload, err = decompress(compression, payload)
	if err != nil {
		return fmt.Errorf("decompression failed: %w", err)
	}

	if err := codec.Decode(payload, v); err != nil {
		return fmt.Errorf("codec decoding failed: %w", err)
	}
	return nil
}

func compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}

func decompress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}

func encrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

func decrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// JSONCodec implements JSON payload encoding.
type JSONCodec struct{}

func (JSONCodec) Encode(v interface{}) ([]byte, error)    { return json.Marshal(v) }
func (JSONCodec) Decode(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (JSONCodec) ID() byte                                { return 1 }
func (JSONCodec) Name() string                            { return "json" }

// MsgPackCodec implements MessagePack payload encoding.
type MsgPackCodec struct{}

func (MsgPackCodec) Encode(v interface{}) ([]byte, error)    { return msgpack.Marshal(v) }
func (MsgPackCodec) Decode(data []byte, v interface{}) error { return msgpack.Unmarshal(data, v) }
func (MsgPackCodec) ID() byte                                { return 2 }
func (MsgPackCodec) Name() string                            { return "msgpack" }
