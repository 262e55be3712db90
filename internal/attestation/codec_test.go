package attestation

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/hale-labs/hale-oracle/internal/verdict"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func filled(b byte) [32]byte {
	var h [32]byte
	for i := range h {
		h[i] = b
	}
	return h
}

func hashPtr(b byte) *[32]byte {
	h := filled(b)
	return &h
}

func strPtr(s string) *string {
	return &s
}

func fullRecord(status Status) *Record {
	return &Record{
		Authority:   filled(0xAA),
		IntentHash:  filled(0x11),
		MetadataURI: "ipfs://meta",
		Status:      status,
		OutcomeHash: hashPtr(0x22),
		ReportHash:  hashPtr(0x33),
		EvidenceURI: strPtr("ipfs://evidence"),
		Bump:        254,
	}
}

func TestDecodeFullRecord(t *testing.T) {
	rec := fullRecord(StatusAudited)
	got, err := Decode(Encode(rec))
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestDecodeSkipsHeaderWithoutChecking(t *testing.T) {
	data := Encode(fullRecord(StatusSealed))
	copy(data[:HeaderSize], []byte("garbage!"))

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, StatusSealed, got.Status)
}

func TestDecodeMandatoryFieldsShortBuffer(t *testing.T) {
	data := Encode(fullRecord(StatusAudited))
	metadataLenEnd := HeaderSize + 32 + 32 + 4

	cases := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"header only", HeaderSize},
		{"partial authority", HeaderSize + 10},
		{"partial intent", HeaderSize + 32 + 31},
		{"partial metadata length", HeaderSize + 64 + 2},
		{"partial metadata", metadataLenEnd + 3},
		{"missing status", metadataLenEnd + len("ipfs://meta")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(data[:tc.size])
			require.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestDecodeMetadataLengthPastEnd(t *testing.T) {
	data := Encode(fullRecord(StatusAudited))
	binary.LittleEndian.PutUint32(data[HeaderSize+64:], 1<<30)

	_, err := Decode(data)
	require.ErrorIs(t, err, ErrDecode)
}

func TestDecodeOptionalTailDegradesToAbsent(t *testing.T) {
	data := Encode(fullRecord(StatusAudited))
	statusEnd := HeaderSize + 64 + 4 + len("ipfs://meta") + 1

	cases := []struct {
		name         string
		size         int
		outcome      bool
		report       bool
		evidence     bool
		expectedBump byte
	}{
		{"no tail", statusEnd, false, false, false, 0},
		{"outcome tag only", statusEnd + 1, false, false, false, 0},
		{"outcome truncated", statusEnd + 10, false, false, false, 0},
		{"outcome only", statusEnd + 33, true, false, false, 0},
		{"report truncated", statusEnd + 33 + 5, true, false, false, 0},
		{"both hashes", statusEnd + 66, true, true, false, 0},
		{"evidence truncated", statusEnd + 66 + 3, true, true, false, 0},
		{"no bump", len(data) - 1, true, true, true, 0},
		{"complete", len(data), true, true, true, 254},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := Decode(data[:tc.size])
			require.NoError(t, err)
			require.Equal(t, StatusAudited, rec.Status)
			require.Equal(t, tc.outcome, rec.OutcomeHash != nil, "outcome hash")
			require.Equal(t, tc.report, rec.ReportHash != nil, "report hash")
			require.Equal(t, tc.evidence, rec.EvidenceURI != nil, "evidence uri")
			require.Equal(t, tc.expectedBump, rec.Bump)
		})
	}
}

func TestDecodeAbsentOptionalsKeepOffsets(t *testing.T) {
	rec := &Record{
		Authority:   filled(1),
		IntentHash:  filled(2),
		MetadataURI: "",
		Status:      StatusSealed,
		OutcomeHash: nil,
		ReportHash:  hashPtr(3),
		EvidenceURI: nil,
		Bump:        7,
	}

	got, err := Decode(Encode(rec))
	require.NoError(t, err)
	require.Nil(t, got.OutcomeHash)
	require.Equal(t, rec.ReportHash, got.ReportHash)
	require.Equal(t, byte(7), got.Bump)
}

func TestDecodeUnknownStatusFallsBackToDraft(t *testing.T) {
	rec := fullRecord(StatusAudited)
	data := Encode(rec)
	statusOffset := HeaderSize + 64 + 4 + len(rec.MetadataURI)
	data[statusOffset] = 42

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, got.Status)
}

func TestIsReadyForBridgeTable(t *testing.T) {
	statuses := []Status{StatusDraft, StatusSealed, StatusAudited, StatusDisputed}

	for _, status := range statuses {
		for _, hasOutcome := range []bool{false, true} {
			for _, hasReport := range []bool{false, true} {
				name := fmt.Sprintf("%s/outcome=%t/report=%t", status, hasOutcome, hasReport)
				t.Run(name, func(t *testing.T) {
					rec := fullRecord(status)
					if !hasOutcome {
						rec.OutcomeHash = nil
					}
					if !hasReport {
						rec.ReportHash = nil
					}

					decoded, err := Decode(Encode(rec))
					require.NoError(t, err)

					expected := status == StatusAudited && hasOutcome && hasReport
					require.Equal(t, expected, IsReadyForBridge(decoded))
				})
			}
		}
	}
}

func TestToVerdict(t *testing.T) {
	cases := []struct {
		status     Status
		outcome    verdict.Outcome
		confidence int
		release    bool
		flags      []string
	}{
		{StatusDisputed, verdict.OutcomeFail, 0, false, []string{verdict.FlagDisputed}},
		{StatusAudited, verdict.OutcomePass, 95, true, []string{}},
		{StatusSealed, verdict.OutcomePending, 0, false, []string{verdict.FlagNotAudited}},
		{StatusDraft, verdict.OutcomePending, 0, false, []string{verdict.FlagNotAudited}},
	}

	for _, tc := range cases {
		t.Run(tc.status.String(), func(t *testing.T) {
			v := ToVerdict(fullRecord(tc.status))
			require.Equal(t, tc.outcome, v.Outcome)
			require.Equal(t, tc.confidence, v.Confidence)
			require.Equal(t, tc.release, v.ReleaseFunds)
			require.Equal(t, tc.flags, v.RiskFlags)
			require.NoError(t, v.Validate())
		})
	}
}

func TestDisputedEvidenceInReasoning(t *testing.T) {
	v := ToVerdict(fullRecord(StatusDisputed))
	require.Contains(t, v.Reasoning, "ipfs://evidence")

	rec := fullRecord(StatusDisputed)
	rec.EvidenceURI = nil
	require.Contains(t, ToVerdict(rec).Reasoning, "N/A")
}

func TestTransactionID(t *testing.T) {
	require.Equal(t, "solana_1111111111111111", TransactionID(fullRecord(StatusAudited)))
}

func TestEncodeStartsWithDiscriminator(t *testing.T) {
	data := Encode(fullRecord(StatusDraft))
	require.True(t, bytes.HasPrefix(data, AccountDiscriminator[:]))
}

func TestDecodeRoundTripMandatoryFieldsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("mandatory fields round-trip", prop.ForAll(
		func(authority []uint8, intent []uint8, uri string, status uint8, hasOutcome bool) bool {
			rec := &Record{MetadataURI: uri, Status: Status(status)}
			copy(rec.Authority[:], authority)
			copy(rec.IntentHash[:], intent)
			if hasOutcome {
				rec.OutcomeHash = hashPtr(9)
			}

			got, err := Decode(Encode(rec))
			if err != nil {
				return false
			}

			mandatory := Encode(&Record{Authority: got.Authority, IntentHash: got.IntentHash, MetadataURI: got.MetadataURI, Status: got.Status})
			expected := Encode(&Record{Authority: rec.Authority, IntentHash: rec.IntentHash, MetadataURI: rec.MetadataURI, Status: rec.Status})

			return got.Authority == rec.Authority &&
				got.IntentHash == rec.IntentHash &&
				got.Status == rec.Status &&
				got.MetadataURI == rec.MetadataURI &&
				bytes.Equal(mandatory, expected)
		},
		gen.SliceOfN(32, gen.UInt8()),
		gen.SliceOfN(32, gen.UInt8()),
		gen.AlphaString(),
		gen.UInt8Range(0, 3),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
