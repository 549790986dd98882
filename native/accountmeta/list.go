package accountmeta

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"

	hookerrors "gatehook/core/errors"
)

const (
	// DiscriminatorLength is the width of the type tag prefixing a list.
	DiscriminatorLength = 8
	// HeaderLength covers the type tag, the value length and the meta count.
	HeaderLength = DiscriminatorLength + 4 + 4
)

var (
	ErrDataTooShort         = hookerrors.New(hookerrors.ErrMalformedInput, "accountmeta: data shorter than list header")
	ErrDiscriminatorMissing = hookerrors.New(hookerrors.ErrMalformedInput, "accountmeta: list type tag not found")
	ErrLengthMismatch       = hookerrors.New(hookerrors.ErrMalformedInput, "accountmeta: length does not match meta count")
	ErrBufferSize           = hookerrors.New(hookerrors.ErrMalformedInput, "accountmeta: destination buffer has wrong size")
)

// Discriminator identifies the instruction a stored list applies to.
type Discriminator [DiscriminatorLength]byte

// NewDiscriminator hashes a namespaced name the same way instruction
// discriminators are computed: the first eight bytes of its sha256 digest.
func NewDiscriminator(name string) Discriminator {
	sum := sha256.Sum256([]byte(name))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorLength])
	return d
}

// SizeOf returns the exact storage size of a list with count metas.
func SizeOf(count int) int {
	return HeaderLength + count*MetaLength
}

// Encode serializes metas under the discriminator, preserving their order.
func Encode(discriminator Discriminator, metas []ExtraAccountMeta) []byte {
	var buf bytes.Buffer
	buf.Grow(SizeOf(len(metas)))
	enc := bin.NewBinEncoder(&buf)
	// Writes into a bytes.Buffer cannot fail.
	_ = enc.WriteBytes(discriminator[:], false)
	_ = enc.WriteUint32(uint32(4+len(metas)*MetaLength), binary.LittleEndian)
	_ = enc.WriteUint32(uint32(len(metas)), binary.LittleEndian)
	for _, meta := range metas {
		_ = enc.WriteUint8(meta.Discriminator)
		_ = enc.WriteBytes(meta.AddressConfig[:], false)
		_ = enc.WriteBool(meta.IsSigner)
		_ = enc.WriteBool(meta.IsWritable)
	}
	return buf.Bytes()
}

// Init writes metas into dst, which must have been allocated with exactly
// SizeOf(len(metas)) bytes.
func Init(dst []byte, discriminator Discriminator, metas []ExtraAccountMeta) error {
	if len(dst) != SizeOf(len(metas)) {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrBufferSize, len(dst), SizeOf(len(metas)))
	}
	copy(dst, Encode(discriminator, metas))
	return nil
}

// Decode parses the list stored under discriminator. Entries with other type
// tags are skipped; a zero tag ends the search.
func Decode(data []byte, discriminator Discriminator) ([]ExtraAccountMeta, error) {
	if len(data) < HeaderLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTooShort, len(data))
	}
	dec := bin.NewBinDecoder(data)
	for dec.Remaining() >= DiscriminatorLength+4 {
		tag, err := dec.ReadNBytes(DiscriminatorLength)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDataTooShort, err)
		}
		length, err := dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDataTooShort, err)
		}
		if bytes.Equal(tag, make([]byte, DiscriminatorLength)) {
			break
		}
		if int(length) > dec.Remaining() {
			return nil, fmt.Errorf("%w: entry length %d exceeds %d remaining bytes", ErrLengthMismatch, length, dec.Remaining())
		}
		value, err := dec.ReadNBytes(int(length))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLengthMismatch, err)
		}
		if !bytes.Equal(tag, discriminator[:]) {
			continue
		}
		return decodeMetas(value)
	}
	return nil, ErrDiscriminatorMissing
}

func decodeMetas(value []byte) ([]ExtraAccountMeta, error) {
	dec := bin.NewBinDecoder(value)
	count, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("%w: missing meta count", ErrDataTooShort)
	}
	if uint64(len(value)) != 4+uint64(count)*MetaLength {
		return nil, fmt.Errorf("%w: %d bytes for %d metas", ErrLengthMismatch, len(value), count)
	}
	metas := make([]ExtraAccountMeta, 0, count)
	for i := uint32(0); i < count; i++ {
		var meta ExtraAccountMeta
		if meta.Discriminator, err = dec.ReadUint8(); err != nil {
			return nil, fmt.Errorf("%w: meta %d: %v", ErrLengthMismatch, i, err)
		}
		config, err := dec.ReadNBytes(AddressConfigLength)
		if err != nil {
			return nil, fmt.Errorf("%w: meta %d: %v", ErrLengthMismatch, i, err)
		}
		copy(meta.AddressConfig[:], config)
		if meta.IsSigner, err = dec.ReadBool(); err != nil {
			return nil, fmt.Errorf("%w: meta %d: %v", ErrLengthMismatch, i, err)
		}
		if meta.IsWritable, err = dec.ReadBool(); err != nil {
			return nil, fmt.Errorf("%w: meta %d: %v", ErrLengthMismatch, i, err)
		}
		if meta.Variant() == VariantInvalid {
			return nil, fmt.Errorf("%w: meta %d has discriminator %d", ErrInvalidMetaDiscriminator, i, meta.Discriminator)
		}
		metas = append(metas, meta)
	}
	return metas, nil
}
