package attestation

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	HeaderSize = 8
	HashSize   = 32

	optionNone byte = 0
	optionSome byte = 1
)

var ErrDecode = errors.New("attestation decode error")

// AccountDiscriminator is the 8-byte header written in front of every attestation
// account, sha256("account:Attestation")[:8]
var AccountDiscriminator = func() [HeaderSize]byte {
	sum := sha256.Sum256([]byte("account:Attestation"))
	var d [HeaderSize]byte
	copy(d[:], sum[:HeaderSize])
	return d
}()

type Status uint8

const (
	StatusDraft Status = iota
	StatusSealed
	StatusAudited
	StatusDisputed
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "DRAFT"
	case StatusSealed:
		return "SEALED"
	case StatusAudited:
		return "AUDITED"
	case StatusDisputed:
		return "DISPUTED"
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
}

func ParseStatus(s string) (Status, error) {
	switch s {
	case "DRAFT", "Draft", "draft":
		return StatusDraft, nil
	case "SEALED", "Sealed", "sealed":
		return StatusSealed, nil
	case "AUDITED", "Audited", "audited":
		return StatusAudited, nil
	case "DISPUTED", "Disputed", "disputed":
		return StatusDisputed, nil
	}
	return StatusDraft, fmt.Errorf("unknown attestation status %q", s)
}

// Record is a read-only snapshot of an attestation account
type Record struct {
	Authority   [32]byte
	IntentHash  [HashSize]byte
	MetadataURI string
	Status      Status
	OutcomeHash *[HashSize]byte
	ReportHash  *[HashSize]byte
	EvidenceURI *string
	Bump        byte
}

func (r *Record) AuthorityBase58() string {
	return base58.Encode(r.Authority[:])
}

func (r *Record) IntentHashHex() string {
	return hex.EncodeToString(r.IntentHash[:])
}

func hashHex(h *[HashSize]byte) string {
	if h == nil {
		return ""
	}
	return hex.EncodeToString(h[:])
}

type reader struct {
	data   []byte
	offset int
}

func (r *reader) remaining() int {
	return len(r.data) - r.offset
}

func (r *reader) take(n int, field string) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d, buffer length %d", ErrDecode, field, n, r.offset, len(r.data))
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

// truncate marks the rest of the buffer as consumed, every later optional field is absent
func (r *reader) truncate() {
	r.offset = len(r.data)
}

// optionalHash reads a discriminated 32-byte hash. Short buffers degrade to absent
func (r *reader) optionalHash() *[HashSize]byte {
	if r.remaining() < 1 {
		return nil
	}
	tag := r.data[r.offset]
	r.offset++
	if tag != optionSome {
		return nil
	}
	if r.remaining() < HashSize {
		r.truncate()
		return nil
	}
	var h [HashSize]byte
	copy(h[:], r.data[r.offset:r.offset+HashSize])
	r.offset += HashSize
	return &h
}

// optionalString reads a discriminated length prefixed string. Short buffers degrade to absent
func (r *reader) optionalString() *string {
	if r.remaining() < 1 {
		return nil
	}
	tag := r.data[r.offset]
	r.offset++
	if tag != optionSome {
		return nil
	}
	if r.remaining() < 4 {
		r.truncate()
		return nil
	}
	n := int(binary.LittleEndian.Uint32(r.data[r.offset:]))
	if r.remaining()-4 < n {
		r.truncate()
		return nil
	}
	r.offset += 4
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	if !utf8.Valid(b) {
		return nil
	}
	s := string(b)
	return &s
}

// Decode parses a raw attestation account. Mandatory fields (authority, intent hash,
// metadata uri, status) fail with ErrDecode when the buffer is short; optional tail
// fields degrade to absent and the bump defaults to 0
func Decode(data []byte) (*Record, error) {
	r := &reader{data: data}
	rec := &Record{}

	if _, err := r.take(HeaderSize, "header"); err != nil {
		return nil, err
	}

	authority, err := r.take(32, "authority")
	if err != nil {
		return nil, err
	}
	copy(rec.Authority[:], authority)

	intent, err := r.take(HashSize, "intent hash")
	if err != nil {
		return nil, err
	}
	copy(rec.IntentHash[:], intent)

	lenBytes, err := r.take(4, "metadata uri length")
	if err != nil {
		return nil, err
	}
	uri, err := r.take(int(binary.LittleEndian.Uint32(lenBytes)), "metadata uri")
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(uri) {
		return nil, fmt.Errorf("%w: metadata uri is not valid utf-8", ErrDecode)
	}
	rec.MetadataURI = string(uri)

	status, err := r.take(1, "status")
	if err != nil {
		return nil, err
	}
	rec.Status = Status(status[0])
	if rec.Status > StatusDisputed {
		rec.Status = StatusDraft
	}

	rec.OutcomeHash = r.optionalHash()
	rec.ReportHash = r.optionalHash()
	rec.EvidenceURI = r.optionalString()

	if r.remaining() > 0 {
		rec.Bump = r.data[r.offset]
	}

	return rec, nil
}

// Encode serializes the record in the account layout, including the discriminator header
func Encode(rec *Record) []byte {
	size := HeaderSize + 32 + HashSize + 4 + len(rec.MetadataURI) + 1 + (1 + HashSize) + (1 + HashSize) + 1 + 1
	if rec.EvidenceURI != nil {
		size += 4 + len(*rec.EvidenceURI)
	}
	buf := make([]byte, 0, size)

	buf = append(buf, AccountDiscriminator[:]...)
	buf = append(buf, rec.Authority[:]...)
	buf = append(buf, rec.IntentHash[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rec.MetadataURI)))
	buf = append(buf, rec.MetadataURI...)
	buf = append(buf, byte(rec.Status))

	for _, h := range []*[HashSize]byte{rec.OutcomeHash, rec.ReportHash} {
		if h == nil {
			buf = append(buf, optionNone)
			continue
		}
		buf = append(buf, optionSome)
		buf = append(buf, h[:]...)
	}

	if rec.EvidenceURI == nil {
		buf = append(buf, optionNone)
	} else {
		buf = append(buf, optionSome)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(*rec.EvidenceURI)))
		buf = append(buf, *rec.EvidenceURI...)
	}

	return append(buf, rec.Bump)
}
