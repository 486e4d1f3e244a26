package codec

import (
	"testing"

	"github.com/cuihairu/croupier-go/message"
)

func TestCodecRoundTrip(t *testing.T) {
	req := &message.InvokeRequest{
		FunctionID: "player.grant_item",
		Payload:    `{"item_id":"sword","count":3}`,
		GameID:     "game1",
		UserID:     "user-42",
		Metadata:   map[string]string{"trace": "abc123"},
	}

	for _, c := range []Codec{&JSONCodec{}, &CBORCodec{}} {
		data, err := c.Encode(req)
		if err != nil {
			t.Fatalf("codec %d encode failed: %v", c.Type(), err)
		}
		var got message.InvokeRequest
		if err := c.Decode(data, &got); err != nil {
			t.Fatalf("codec %d decode failed: %v", c.Type(), err)
		}
		if got.FunctionID != req.FunctionID || got.Payload != req.Payload || got.UserID != req.UserID {
			t.Errorf("codec %d round trip mismatch: got %+v", c.Type(), got)
		}
		if got.Metadata["trace"] != "abc123" {
			t.Errorf("codec %d lost metadata", c.Type())
		}
	}
}

func TestCBORSmallerThanJSON(t *testing.T) {
	req := &message.InvokeRequest{
		FunctionID: "player.grant_item",
		Payload:    `{"item_id":"sword"}`,
		GameID:     "game1",
		Env:        "prod",
	}
	j, err := (&JSONCodec{}).Encode(req)
	if err != nil {
		t.Fatal(err)
	}
	c, err := (&CBORCodec{}).Encode(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(c) >= len(j) {
		t.Errorf("expected cbor (%d bytes) to be smaller than json (%d bytes)", len(c), len(j))
	}
}

func TestByName(t *testing.T) {
	if ByName("cbor").Type() != CodecTypeCBOR {
		t.Error("ByName(cbor) should return the CBOR codec")
	}
	if ByName("json").Type() != CodecTypeJSON {
		t.Error("ByName(json) should return the JSON codec")
	}
	if ByName("unknown").Type() != CodecTypeJSON {
		t.Error("unknown codec names should fall back to JSON")
	}
}

func TestDecodeInvalidInput(t *testing.T) {
	var v message.InvokeRequest
	if err := (&JSONCodec{}).Decode([]byte("{not json"), &v); err == nil {
		t.Error("expected JSON decode error")
	}
	if err := (&CBORCodec{}).Decode([]byte{0xff, 0x00}, &v); err == nil {
		t.Error("expected CBOR decode error")
	}
}
