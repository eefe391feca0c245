package wire

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/unkn0wn-root/stratacache/layer"
)

func sampleEntry() layer.Entry {
	return layer.Entry{
		Payload:   []byte(`{"name":"Ana"}`),
		Version:   42,
		Timestamp: 1724630400123,
		Origin:    layer.Remote,
		Meta: layer.Metadata{
			UserID:       "u-7",
			NodeID:       "node-abc",
			Tags:         []string{"profile", "hot"},
			Dependencies: []string{"user:7"},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	in := sampleEntry()
	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestRoundTripMinimal(t *testing.T) {
	in := layer.Entry{Payload: nil, Version: 0, Timestamp: 0, Origin: layer.Memory}
	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Version != 0 || out.Origin != layer.Memory || len(out.Payload) != 0 {
		t.Fatalf("minimal round trip = %+v", out)
	}
	if out.Meta.Tags != nil || out.Meta.Dependencies != nil {
		t.Fatalf("empty lists decoded as %+v", out.Meta)
	}
}

func TestPeekTimestamp(t *testing.T) {
	in := sampleEntry()
	ts, err := PeekTimestamp(Encode(in))
	if err != nil {
		t.Fatalf("PeekTimestamp: %v", err)
	}
	if ts != in.Timestamp {
		t.Fatalf("PeekTimestamp = %d, want %d", ts, in.Timestamp)
	}
}

func TestDecodeRejectsCorrupt(t *testing.T) {
	good := Encode(sampleEntry())

	cases := map[string][]byte{
		"empty":           {},
		"short":           good[:HeaderLen-1],
		"bad magic":       append([]byte("XXXX"), good[4:]...),
		"bad version":     mutate(good, 4, 99),
		"bad origin":      mutate(good, 5, 0),
		"truncated body":  good[:len(good)-3],
		"oversized vlen":  mutate(good, len(good)-len(sampleEntry().Payload)-1, 0xFF),
		"foreign payload": []byte("PLAIN STRING FROM ANOTHER WRITER"),
	}
	for name, b := range cases {
		if _, err := Decode(b); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: Decode err = %v, want ErrCorrupt", name, err)
		}
		if name != "truncated body" && name != "oversized vlen" {
			if _, err := PeekTimestamp(b); err == nil && len(b) < HeaderLen {
				t.Errorf("%s: PeekTimestamp accepted short input", name)
			}
		}
	}
}

func TestDecodeCopiesPayload(t *testing.T) {
	in := sampleEntry()
	raw := Encode(in)
	out, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := range raw {
		raw[i] = 0
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Fatal("decoded payload aliases the input buffer")
	}
}

func mutate(b []byte, i int, v byte) []byte {
	out := append([]byte(nil), b...)
	out[i] = v
	return out
}
