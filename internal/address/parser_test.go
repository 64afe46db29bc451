package address

import "testing"

func TestParserBareHexDefault(t *testing.T) {
	p := NewParser()
	addr, err := p.Parse("p:1000")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if addr.Space != GuestPhysical || addr.Value != 0x1000 {
		t.Errorf("got %+v, want {Value:0x1000 Space:GuestPhysical}", addr)
	}
}

func TestParserExplicitHexPrefix(t *testing.T) {
	p := NewParser()
	addr, err := p.Parse("p:0x2000")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if addr.Value != 0x2000 {
		t.Errorf("got 0x%x, want 0x2000", addr.Value)
	}
}

func TestParserDollarHexPrefix(t *testing.T) {
	p := NewParser()
	addr, err := p.Parse("p:$ff")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if addr.Value != 0xff {
		t.Errorf("got 0x%x, want 0xff", addr.Value)
	}
}

func TestParserHexSuffix(t *testing.T) {
	p := NewParser()
	addr, err := p.Parse("p:ffh")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if addr.Value != 0xff {
		t.Errorf("got 0x%x, want 0xff", addr.Value)
	}
}

func TestParserExplicitDecimal(t *testing.T) {
	p := NewParser()
	addr, err := p.Parse("p:.100")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if addr.Value != 100 {
		t.Errorf("got %d, want 100", addr.Value)
	}
}

func TestParserDecimalSuffix(t *testing.T) {
	p := NewParser()
	addr, err := p.Parse("p:100d")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if addr.Value != 100 {
		t.Errorf("got %d, want 100", addr.Value)
	}
}

func TestParserSharedFileOffsetPrefix(t *testing.T) {
	p := NewParser()
	addr, err := p.Parse("s:0x400")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if addr.Space != SharedFileOffset || addr.Value != 0x400 {
		t.Errorf("got %+v, want SharedFileOffset 0x400", addr)
	}
}

func TestParserCrunchedPrefix(t *testing.T) {
	p := NewParser()
	addr, err := p.Parse("c:5")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if addr.Space != Crunched || addr.Value != 5 {
		t.Errorf("got %+v, want Crunched 0x5", addr)
	}
}

func TestParserVirtualWithPID(t *testing.T) {
	p := NewParser()
	addr, err := p.Parse("v:1234:0x7fff0000")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if addr.Space != GuestVirtual {
		t.Fatalf("space = %v, want GuestVirtual", addr.Space)
	}
	if addr.PID == nil || *addr.PID != 1234 {
		t.Errorf("pid = %v, want 1234", addr.PID)
	}
	if addr.Value != 0x7fff0000 {
		t.Errorf("value = 0x%x, want 0x7fff0000", addr.Value)
	}
}

func TestParserVirtualWithoutPID(t *testing.T) {
	p := NewParser()
	addr, err := p.Parse("v:0x7fff0000")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if addr.Space != GuestVirtual {
		t.Fatalf("space = %v, want GuestVirtual", addr.Space)
	}
	if addr.PID != nil {
		t.Errorf("pid = %v, want nil", addr.PID)
	}
}

func TestParserBuiltins(t *testing.T) {
	p := NewParser()
	p.SetBuiltins(Builtins{RAM: 0x40000000, SP: 0x1000, PC: 0x2000, Stack: 0x7fff0000})

	cases := []struct {
		expr string
		want uint64
	}{
		{"p:ram", 0x40000000},
		{"p:sp", 0x1000},
		{"p:pc", 0x2000},
		{"p:stack", 0x7fff0000},
		{"p:RAM", 0x40000000},
	}
	for _, c := range cases {
		addr, err := p.Parse(c.expr)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", c.expr, err)
		}
		if addr.Value != c.want {
			t.Errorf("Parse(%q) = 0x%x, want 0x%x", c.expr, addr.Value, c.want)
		}
	}
}

func TestParserVariable(t *testing.T) {
	p := NewParser()
	p.SetVariable("foo", 0x55)

	addr, err := p.Parse("p:foo")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if addr.Value != 0x55 {
		t.Errorf("got 0x%x, want 0x55", addr.Value)
	}
}

func TestParserAdditionExpression(t *testing.T) {
	p := NewParser()
	p.SetBuiltins(Builtins{RAM: 0x40000000})

	addr, err := p.Parse("p:ram+0x100")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if addr.Value != 0x40000100 {
		t.Errorf("got 0x%x, want 0x40000100", addr.Value)
	}
}

func TestParserSubtractionExpression(t *testing.T) {
	p := NewParser()
	p.SetBuiltins(Builtins{Stack: 0x7fff1000})

	addr, err := p.Parse("v:stack-0x100")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if addr.Value != 0x7fff0f00 {
		t.Errorf("got 0x%x, want 0x7fff0f00", addr.Value)
	}
}

func TestParserNoPrefixUsesContext(t *testing.T) {
	p := NewParser()
	addr, err := p.ParseWithContext("0x1000", GuestPhysical, nil)
	if err != nil {
		t.Fatalf("ParseWithContext() error = %v", err)
	}
	if addr.Space != GuestPhysical || addr.Value != 0x1000 {
		t.Errorf("got %+v, want GuestPhysical 0x1000", addr)
	}
}

func TestParserEmptyExpressionErrors(t *testing.T) {
	p := NewParser()
	if _, err := p.Parse(""); err == nil {
		t.Error("expected error for empty expression")
	}
	if _, err := p.Parse("   "); err == nil {
		t.Error("expected error for whitespace-only expression")
	}
}

func TestParserUnknownNameErrors(t *testing.T) {
	p := NewParser()
	if _, err := p.Parse("p:nosuchvar"); err == nil {
		t.Error("expected error for unresolvable name parsed as hex")
	}
}
