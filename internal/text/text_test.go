package text

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "slide title dropped",
			input: "Slide 1\nHello world. This is a test!\n",
			want:  []string{"Hello world.", "This is a test!"},
		},
		{
			name:  "no terminator",
			input: "Hello there",
			want:  []string{"Hello there"},
		},
		{
			name:  "only slides",
			input: "Slide 1\nSlide 2\n",
			want:  nil,
		},
		{
			name:  "indented slide title",
			input: "   Slide 3: Results\nWe won.",
			want:  []string{"We won."},
		},
		{
			name:  "marker is case sensitive",
			input: "slide 4 is not a title. Really?",
			want:  []string{"slide 4 is not a title.", "Really?"},
		},
		{
			name:  "marker needs trailing space",
			input: "Slides are fun.",
			want:  []string{"Slides are fun."},
		},
		{
			name:  "quotes removed",
			input: `He said "stop". She said "go!" Then silence.`,
			want:  []string{"He said stop.", "She said go!", "Then silence."},
		},
		{
			name:  "lines joined across breaks",
			input: "This sentence\nspans two lines. And\nthis one too?",
			want:  []string{"This sentence spans two lines.", "And this one too?"},
		},
		{
			name:  "terminator without whitespace does not split",
			input: "Version 1.2 shipped. See example.com!",
			want:  []string{"Version 1.2 shipped.", "See example.com!"},
		},
		{
			name:  "runs of punctuation stay together",
			input: "Wait... what?! Yes.",
			want:  []string{"Wait...", "what?!", "Yes."},
		},
		{
			name:  "crlf line endings",
			input: "Slide 1\r\nFirst line.\r\nSecond line.\r\n",
			want:  []string{"First line.", "Second line."},
		},
		{
			name:  "lone cr line endings",
			input: "Slide 1\rHello world. Bye!\r",
			want:  []string{"Hello world.", "Bye!"},
		},
		{
			name:  "mixed line endings",
			input: "Slide 1\r\nOne.\rSlide 2\nTwo.",
			want:  []string{"One.", "Two."},
		},
		{
			name:  "no-break space after terminator",
			input: "Hello world.\u00a0Next one!",
			want:  []string{"Hello world.", "Next one!"},
		},
		{
			name:  "unicode spaces after terminator",
			input: "Hello world.\u00a0Next one!\u2003Third.\vFourth.\u3000Fifth?\u0085Sixth.",
			want:  []string{"Hello world.", "Next one!", "Third.", "Fourth.", "Fifth?", "Sixth."},
		},
		{
			name:  "blank and whitespace",
			input: "\n\n   \t\n",
			want:  nil,
		},
		{
			name:  "trailing terminator with whitespace",
			input: "Done. ",
			want:  []string{"Done."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chunk(tt.input))
		})
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("Slide 1\n\"Quoted\" line\nnext")
	assert.Equal(t, "Quoted line next", got)
}

var propertyInputs = []string{
	"Slide 1\nHello world. This is a test!\n",
	"A. B? C! D",
	"  leading space.   trailing space!   ",
	"Slide 9\n\"Everything\" in \"quotes\". Slide 10 mid-line stays.\nSlide 11\nEnd",
	"no punctuation at all\nacross lines",
	"Tabs\tand. \t\nnewlines? mixed!\n\n",
	"Unicode — dashes… and émojis 🎉. Second sentence.",
	"",
	"Slide \n",
	"?!.",
	"Slide 1\rHello world. Bye!\r",
	"Pasted\u00a0text. With\u00a0no-break spaces!\u00a0Done.",
	"Vertical.\vTab? Ideographic.\u3000Space!\u2009Thin.",
}

func TestChunkProperties(t *testing.T) {
	for _, input := range propertyInputs {
		normalized := Normalize(input)
		chunks := Chunk(input)

		for _, c := range chunks {
			assert.NotEmpty(t, strings.TrimSpace(c), "input %q", input)
			assert.Equal(t, strings.TrimSpace(c), c, "chunk not trimmed for input %q", input)
			assert.NotContains(t, c, `"`, "input %q", input)
			assert.False(t, hasInnerBoundary(c), "chunk %q still holds a sentence boundary", c)
		}

		// rejoining reproduces the normalized text up to whitespace
		assert.Equal(t,
			strings.Join(strings.Fields(normalized), " "),
			strings.Join(strings.Fields(strings.Join(chunks, " ")), " "),
			"input %q", input)
	}
}

// hasInnerBoundary reports whether s contains a terminator followed by any
// Unicode whitespace.
func hasInnerBoundary(s string) bool {
	runes := []rune(s)
	for i := 0; i+1 < len(runes); i++ {
		if strings.ContainsRune(".?!", runes[i]) && unicode.IsSpace(runes[i+1]) {
			return true
		}
	}
	return false
}

func TestSlideLinesNeverContribute(t *testing.T) {
	input := "Slide 1 ZEBRA\nkept text.\n  Slide 2 GIRAFFE  \nmore text!"
	for _, c := range Chunk(input) {
		assert.NotContains(t, c, "ZEBRA")
		assert.NotContains(t, c, "GIRAFFE")
	}
	assert.Equal(t, []string{"kept text.", "more text!"}, Chunk(input))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("lone cr file", func(t *testing.T) {
		path := filepath.Join(dir, "mac.txt")
		require.NoError(t, os.WriteFile(path, []byte("Slide 1\rHello world. Bye!\r"), 0o644))

		doc, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Hello world.", "Bye!"}, Chunk(doc.Content))
	})

	t.Run("reads content", func(t *testing.T) {
		path := filepath.Join(dir, "ok.txt")
		require.NoError(t, os.WriteFile(path, []byte("Hello."), 0o644))

		doc, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Hello.", doc.Content)
		assert.Equal(t, path, doc.Path)
	})

	t.Run("strips bom", func(t *testing.T) {
		path := filepath.Join(dir, "bom.txt")
		require.NoError(t, os.WriteFile(path, append([]byte{0xEF, 0xBB, 0xBF}, "Hi."...), 0o644))

		doc, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Hi.", doc.Content)
	})

	t.Run("replaces invalid utf8", func(t *testing.T) {
		path := filepath.Join(dir, "bad.txt")
		require.NoError(t, os.WriteFile(path, []byte{'a', 0xff, 'b'}, 0o644))

		doc, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "a�b", doc.Content)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.txt"))
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("whitespace only", func(t *testing.T) {
		path := filepath.Join(dir, "blank.txt")
		require.NoError(t, os.WriteFile(path, []byte(" \n\t\n"), 0o644))

		_, err := Load(path)
		assert.True(t, errors.Is(err, ErrEmptyInput))
	})

	t.Run("directory", func(t *testing.T) {
		_, err := Load(dir)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNotFound))
	})
}
