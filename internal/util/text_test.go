package util

import "testing"

func TestSanitizeCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain utf8",
			input: "Ginseng",
			want:  "Ginseng",
		},
		{
			name:  "surrounding whitespace",
			input: "  Licorice \t",
			want:  "Licorice",
		},
		{
			name:  "contains null byte",
			input: "Gin\x00seng",
			want:  "Ginseng",
		},
		{
			name:  "contains invalid utf8",
			input: string([]byte{'a', 0xff, 'b'}),
			want:  "ab",
		},
		{
			name:  "byte order mark",
			input: "\ufeffPrescription_Name",
			want:  "Prescription_Name",
		},
		{
			name:  "hangul kept",
			input: "성분",
			want:  "성분",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeCell(tt.input)
			if got != tt.want {
				t.Fatalf("unexpected sanitized value: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsBlank(t *testing.T) {
	for _, v := range []string{"", "  ", "nan", "NaN", " NAN "} {
		if !IsBlank(v) {
			t.Fatalf("expected %q to be blank", v)
		}
	}
	for _, v := range []string{"0", "nano", "HerbX"} {
		if IsBlank(v) {
			t.Fatalf("expected %q not to be blank", v)
		}
	}
}
