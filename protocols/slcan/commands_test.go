package slcan

import "testing"

func TestParseCommand(t *testing.T) {
	cases := []struct {
		input string
		want  CommandType
	}{
		{"O", CommandOpen},
		{"C", CommandClose},
		{"S5", CommandBitrate},
		{"V", CommandVersion},
		{"F", CommandStatus},
		{"t1000", CommandFrame},
		{"R1ABCDEF00", CommandFrame},
		{"", CommandUnknown},
		{"?", CommandUnknown},
	}

	for _, tc := range cases {
		cmd := ParseCommand(tc.input)
		if cmd.Type != tc.want {
			t.Fatalf("for %q expected %v got %v", tc.input, tc.want, cmd.Type)
		}
		if cmd.Raw != tc.input {
			t.Fatalf("expected raw command to be preserved, got %q", cmd.Raw)
		}
	}
}

func TestBitrateCommand(t *testing.T) {
	for kbit, want := range map[int]string{125: "S4", 250: "S5", 500: "S6", 1000: "S8"} {
		got, err := BitrateCommand(kbit)
		if err != nil {
			t.Fatalf("BitrateCommand(%d) returned error: %v", kbit, err)
		}
		if got != want {
			t.Fatalf("BitrateCommand(%d) = %q, want %q", kbit, got, want)
		}
	}

	if _, err := BitrateCommand(333); err == nil {
		t.Fatalf("expected error for 333 kbit/s")
	}

	rates := SupportedBitrates()
	if len(rates) != 9 || rates[0] != 10 || rates[8] != 1000 {
		t.Fatalf("unexpected rates %v", rates)
	}
}
