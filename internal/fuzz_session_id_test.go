package internal

import "testing"

// FuzzParseSessionID feeds arbitrary strings to ParseSessionID. Invalid input must
// fail cleanly; accepted input must re-parse to the same id.
func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("AAAAAAAAAAAAAAAAAAAAAA")
	f.Add("!!!not-base64!!!")
	f.Add("aGVsbG8=")

	if sid, err := NewSessionID(); err == nil {
		f.Add(sid.String())
	}

	f.Fuzz(func(t *testing.T, input string) {
		sid, err := ParseSessionID(input)
		if err != nil {
			return
		}
		again, err := ParseSessionID(sid.String())
		if err != nil {
			t.Fatalf("re-parse %q: %v", sid.String(), err)
		}
		if again != sid {
			t.Fatalf("round trip changed id for input %q", input)
		}
	})
}
