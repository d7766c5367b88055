package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfanityFilterClean(t *testing.T) {
	f := NewProfanityFilter()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "clean text untouched", in: "hello world", want: "hello world"},
		{name: "single word masked", in: "this is damn hard", want: "this is **** hard"},
		{name: "case insensitive", in: "DAMN it", want: "**** it"},
		{name: "multiple occurrences", in: "damn damn", want: "**** ****"},
		{name: "mixed words", in: "stupid idiot", want: "****** *****"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Clean(tt.in))
		})
	}
}

func TestProfanityFilterPreservesLength(t *testing.T) {
	f := NewProfanityFilter()
	in := "what the hell is this crap"
	out := f.Clean(in)
	assert.Len(t, out, len(in))
}
