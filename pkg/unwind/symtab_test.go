package unwind

import "testing"

func TestSymTableLookupBySize(t *testing.T) {
	st := newSymTable()
	st.add(symbol{addr: 0x1000, size: 0x10, name: "foo"})
	st.add(symbol{addr: 0x1010, size: 0x20, name: "bar"})
	st.finalize()

	cases := map[uint64]string{
		0x1000: "foo",
		0x100f: "foo",
		0x1010: "bar",
		0x102f: "bar",
	}
	for ip, want := range cases {
		got, ok := st.lookup(ip)
		if !ok || got != want {
			t.Errorf("lookup(0x%x) = %q,%v want %q", ip, got, ok, want)
		}
	}
	if _, ok := st.lookup(0x1030); ok {
		t.Errorf("lookup(0x1030) should miss: past the last symbol's range")
	}
	if _, ok := st.lookup(0x0fff); ok {
		t.Errorf("lookup(0x0fff) should miss: before any symbol")
	}
}

func TestSymTableLookupFallsBackWithoutSize(t *testing.T) {
	st := newSymTable()
	st.add(symbol{addr: 0x2000, size: 0, name: "stripped_guess"})
	st.finalize()

	got, ok := st.lookup(0x2500)
	if !ok || got != "stripped_guess" {
		t.Errorf("lookup with unknown size = %q,%v want %q,true", got, ok, "stripped_guess")
	}
}

func TestSymTableEmpty(t *testing.T) {
	st := newSymTable()
	if _, ok := st.lookup(0x1000); ok {
		t.Errorf("lookup on empty table should miss")
	}
}
