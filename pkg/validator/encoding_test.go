package validator

import "testing"

func TestDecodeBytes(t *testing.T) {
	decodedHex, err := DecodeBytes("70736274ff", EncodingHex)
	if err != nil {
		t.Fatalf("decode hex failed: %v", err)
	}
	if string(decodedHex[:4]) != "psbt" {
		t.Fatalf("unexpected hex decode %x", decodedHex)
	}

	decoded, err := DecodeBytes("cHNidP8=", EncodingBase64)
	if err != nil {
		t.Fatalf("decode base64 failed: %v", err)
	}
	if len(decoded) != 5 {
		t.Fatalf("base64 decode len=%d, want 5", len(decoded))
	}

	if _, err := DecodeBytes("zzz", EncodingHex); err == nil {
		t.Fatal("expected error for invalid hex")
	}
	if _, err := DecodeBytes("bad type", EncodingBase64); err == nil {
		t.Fatal("expected error for invalid base64")
	}
	if _, err := DecodeBytes("", EncodingHex); err == nil {
		t.Fatal("expected error for empty payload")
	}

	if enc, err := NormalizeEncoding(""); err != nil || enc != EncodingBase64 {
		t.Fatalf("empty encoding should default to base64, got %q %v", enc, err)
	}
	if _, err := NormalizeEncoding("HEX"); err != nil {
		t.Fatalf("normalize uppercase failed: %v", err)
	}
	if _, err := NormalizeEncoding("unknown"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}
