package core

import "testing"

func TestConfig_MainServerAddress(t *testing.T) {
	cfg := &Config{Hostname: "127.0.0.1"}
	cfg.MainServer.Port = 12345

	addr := cfg.MainServerAddress()
	expected := "127.0.0.1:12345"
	if addr != expected {
		t.Errorf("MainServerAddress() want = %s, got = %s", expected, addr)
	}
}

func TestBufferSize_Values(t *testing.T) {
	cases := map[BufferSize]int32{
		BufferSizeDefault: 0,
		BufferSizeSmall:   256 * 1024,
		BufferSizeMedium:  512 * 1024,
		BufferSizeLarge:   1024 * 1024,
	}
	for bs, want := range cases {
		if int32(bs) != want {
			t.Errorf("BufferSize %v want = %d, got = %d", bs, want, int32(bs))
		}
	}
}
