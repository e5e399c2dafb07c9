package config

import "testing"

func TestParseFeedKind(t *testing.T) {
	tests := []struct {
		in      string
		want    FeedKind
		wantErr bool
	}{
		{"dserv", FeedDserv, false},
		{"WebSocket", FeedDserv, false},
		{"file", FeedFile, false},
		{" lua ", FeedScript, false},
		{"script", FeedScript, false},
		{"none", FeedNone, false},
		{"", FeedNone, false},
		{"mqtt", FeedNone, true},
	}
	for _, tt := range tests {
		got, err := ParseFeedKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFeedKind(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFeedKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFeedKindString(t *testing.T) {
	for kind, want := range map[FeedKind]string{
		FeedDserv: "dserv", FeedFile: "file", FeedScript: "script", FeedNone: "none", FeedKind(9): "unknown",
	} {
		if got := kind.String(); got != want {
			t.Errorf("FeedKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestSubscribeMatch(t *testing.T) {
	fc := FeedConfig{Stream: "graphics/main"}
	if fc.SubscribeMatch() != "graphics/main" {
		t.Errorf("SubscribeMatch() = %q", fc.SubscribeMatch())
	}
	fc.Match = "graphics/*"
	if fc.SubscribeMatch() != "graphics/*" {
		t.Errorf("SubscribeMatch() = %q", fc.SubscribeMatch())
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	cfg.Window.Width = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted zero width")
	}
}
