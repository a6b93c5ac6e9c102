package rules

import (
	"errors"
	"testing"
)

func TestResolveTable(t *testing.T) {
	tests := []struct {
		a, b    Move
		expectA Outcome
		expectB Outcome
	}{
		{Rock, Scissors, Win, Lose},
		{Scissors, Paper, Win, Lose},
		{Paper, Rock, Win, Lose},
		{Scissors, Rock, Lose, Win},
		{Paper, Scissors, Lose, Win},
		{Rock, Paper, Lose, Win},
		{Rock, Rock, Draw, Draw},
		{Paper, Paper, Draw, Draw},
		{Scissors, Scissors, Draw, Draw},
	}

	for _, tc := range tests {
		t.Run(string(tc.a)+"_vs_"+string(tc.b), func(t *testing.T) {
			gotA, gotB, err := Resolve(tc.a, tc.b)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if gotA != tc.expectA || gotB != tc.expectB {
				t.Errorf("Resolve(%s, %s) = (%s, %s), expected (%s, %s)",
					tc.a, tc.b, gotA, gotB, tc.expectA, tc.expectB)
			}
		})
	}
}

func TestResolveAntiSymmetric(t *testing.T) {
	for _, a := range Moves() {
		for _, b := range Moves() {
			ab1, ab2, err := Resolve(a, b)
			if err != nil {
				t.Fatalf("Resolve(%s, %s) error: %v", a, b, err)
			}
			ba1, ba2, err := Resolve(b, a)
			if err != nil {
				t.Fatalf("Resolve(%s, %s) error: %v", b, a, err)
			}
			if ab1 != ba2 || ab2 != ba1 {
				t.Errorf("Resolve not anti-symmetric for %s/%s: (%s,%s) vs (%s,%s)",
					a, b, ab1, ab2, ba1, ba2)
			}
			if a == b && (ab1 != Draw || ab2 != Draw) {
				t.Errorf("Resolve(%s, %s) should draw, got (%s, %s)", a, b, ab1, ab2)
			}
		}
	}
}

func TestResolveRejectsUnknownMove(t *testing.T) {
	if _, _, err := Resolve("lizard", Rock); !errors.Is(err, ErrInvalidMove) {
		t.Errorf("Expected ErrInvalidMove for first move, got %v", err)
	}
	if _, _, err := Resolve(Rock, "spock"); !errors.Is(err, ErrInvalidMove) {
		t.Errorf("Expected ErrInvalidMove for second move, got %v", err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Move
		wantErr bool
	}{
		{"rock", Rock, false},
		{" Paper ", Paper, false},
		{"SCISSORS", Scissors, false},
		{"", "", true},
		{"lizard", "", true},
	}

	for _, tc := range tests {
		got, err := Parse(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidMove) {
				t.Errorf("Parse(%q) expected ErrInvalidMove, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %q, expected %q", tc.in, got, tc.want)
		}
	}
}
