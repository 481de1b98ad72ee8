package parser

import "testing"

func TestSplitSections(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Section
	}{
		{
			name:     "single record",
			input:    "a: 1\nb: 2\n",
			expected: []Section{{0, "a: 1\nb: 2\n"}},
		},
		{
			name:  "two records",
			input: "a: 1\n\na: 2\n",
			expected: []Section{
				{0, "a: 1"},
				{6, "a: 2\n"},
			},
		},
		{
			name:  "blank run with whitespace",
			input: "a: 1\n \t\n\r\n\na: 2",
			expected: []Section{
				{0, "a: 1"},
				{11, "a: 2"},
			},
		},
		{
			name:     "leading and trailing blank lines",
			input:    "\n\na: 1\n\n\n",
			expected: []Section{{2, "a: 1"}},
		},
		{
			name:     "whitespace only",
			input:    " \n\n\t\n",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSections(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %d sections, got %d: %+v", len(tt.expected), len(got), got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("section %d: expected %+v, got %+v", i, tt.expected[i], got[i])
				}
				if tt.input[got[i].Offset:got[i].Offset+len(got[i].Text)] != got[i].Text {
					t.Errorf("section %d: offset %d does not locate its text", i, got[i].Offset)
				}
			}
		})
	}
}
