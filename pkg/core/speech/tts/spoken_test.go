package tts

import "testing"

func TestSpoken(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{
			name: "plain text untouched",
			in:   "We can book you in for Tuesday.",
			want: "We can book you in for Tuesday.",
		},
		{
			name: "emphasis stripped",
			in:   "**Before we continue**, what is _your_ name?",
			want: "Before we continue, what is your name?",
		},
		{
			name: "markdown link keeps label",
			in:   "See [our pricing](https://example.com/pricing) for details.",
			want: "See our pricing for details.",
		},
		{
			name: "bare url removed",
			in:   "Visit https://example.com/clinic for directions.",
			want: "Visit for directions.",
		},
		{
			name: "code fence removed",
			in:   "Run this:\n```\ncurl -X POST\n```\nThen retry.",
			want: "Run this: Then retry.",
		},
		{
			name: "inline code keeps content",
			in:   "Use the `transcribe` endpoint.",
			want: "Use the transcribe endpoint.",
		},
		{
			name: "headings and bullets flattened",
			in:   "## Options\n- surgery\n- physiotherapy",
			want: "Options surgery physiotherapy",
		},
		{
			name: "emoji removed",
			in:   "Great news! 🎉 You qualify ✅",
			want: "Great news! You qualify",
		},
		{
			name: "whitespace collapsed",
			in:   "one\n\n\ntwo   three",
			want: "one two three",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Spoken(tt.in); got != tt.want {
				t.Errorf("Spoken(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
