package blecentral

import "testing"

func TestUUIDString(t *testing.T) {
	if s := UUID16(0x180f).String(); s != "180f" {
		t.Fatalf("got %v", s)
	}

	const nus = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	u, err := ParseUUID(nus)
	if err != nil {
		t.Fatal(err)
	}
	if u.U16 != 0 {
		t.Fatalf("vendor uuid shortened to %04x", u.U16)
	}
	if u.String() != nus {
		t.Fatalf("got %v, want %v", u.String(), nus)
	}
}

func TestParseUUIDShortens(t *testing.T) {
	u, err := ParseUUID("0000180f-0000-1000-8000-00805f9b34fb")
	if err != nil {
		t.Fatal(err)
	}
	if u != UUID16(0x180f) {
		t.Fatalf("got %+v", u)
	}
}

func TestUUIDFromLE(t *testing.T) {
	u, err := UUIDFromLE([]byte{0x0f, 0x18})
	if err != nil || u.U16 != 0x180f {
		t.Fatalf("16-bit: %+v, %v", u, err)
	}

	u, err = UUIDFromLE([]byte{0x0f, 0x18, 0x00, 0x00})
	if err != nil || u.U16 != 0x180f {
		t.Fatalf("32-bit: %+v, %v", u, err)
	}

	nus, _ := ParseUUID("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	u, err = UUIDFromLE(nus.LE())
	if err != nil || u != nus {
		t.Fatalf("128-bit: %+v, %v", u, err)
	}

	if _, err := UUIDFromLE([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error")
	}
}
