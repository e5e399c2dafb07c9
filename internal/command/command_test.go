package command

import "testing"

func TestParseOpcode(t *testing.T) {
	tests := []struct {
		name string
		want Opcode
	}{
		{"setwindow", OpSetWindow},
		{"frect", OpFilledRect},
		{"filledrect", OpFilledRect},
		{"setlwidth", OpSetLineWidth},
		{"SetColor", OpUnknown},
		{"foobar", OpUnknown},
		{"", OpUnknown},
	}
	for _, tt := range tests {
		if got := ParseOpcode(tt.name); got != tt.want {
			t.Errorf("ParseOpcode(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestOpcodeStringRoundTrip(t *testing.T) {
	for _, name := range Names() {
		op := ParseOpcode(name)
		if op == OpUnknown {
			t.Errorf("ParseOpcode(%q) = unknown", name)
			continue
		}
		if ParseOpcode(op.String()) != op {
			t.Errorf("ParseOpcode(%v.String()) did not round trip", op)
		}
	}
	if OpUnknown.String() != "unknown" {
		t.Errorf("OpUnknown.String() = %q", OpUnknown.String())
	}
}

func TestArgConversions(t *testing.T) {
	tests := []struct {
		name   string
		arg    Arg
		float  float64
		ok     bool
		truthy bool
		text   string
	}{
		{"number", Number(2.5), 2.5, true, true, "2.5"},
		{"zero", Number(0), 0, true, false, "0"},
		{"numeric string", String(" 12 "), 12, true, true, " 12 "},
		{"text", String("abc"), 0, false, true, "abc"},
		{"empty string", String(""), 0, false, false, ""},
		{"true", Bool(true), 1, true, true, "true"},
		{"null", Arg{}, 0, false, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := tt.arg.Float()
			if ok != tt.ok || (ok && f != tt.float) {
				t.Errorf("Float() = %v, %v; want %v, %v", f, ok, tt.float, tt.ok)
			}
			if tt.arg.Truthy() != tt.truthy {
				t.Errorf("Truthy() = %v, want %v", tt.arg.Truthy(), tt.truthy)
			}
			if tt.arg.Text() != tt.text {
				t.Errorf("Text() = %q, want %q", tt.arg.Text(), tt.text)
			}
		})
	}
}

func TestCommandArgumentErrors(t *testing.T) {
	c := New("line", Number(1), String("x"))
	if _, err := c.Float(0); err != nil {
		t.Errorf("Float(0) error = %v", err)
	}
	if _, err := c.Float(1); err == nil {
		t.Error("Float(1) on non-numeric string should fail")
	}
	if _, err := c.Float(2); err == nil {
		t.Error("Float(2) on missing argument should fail")
	}
	if _, err := c.Floats(4); err == nil {
		t.Error("Floats(4) should fail")
	}
	if c.Text(5) != "" {
		t.Error("Text() on missing argument should be empty")
	}
}

func TestCommandString(t *testing.T) {
	c := New("drawtext", String("hello there"))
	if got := c.String(); got != `drawtext "hello there"` {
		t.Errorf("String() = %q", got)
	}
	c = New("line", Number(0), Number(1.5), Number(2), Number(3))
	if got := c.String(); got != "line 0 1.5 2 3" {
		t.Errorf("String() = %q", got)
	}
}
