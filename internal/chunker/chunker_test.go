package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		maxSize int
		overlap int
	}{
		{"零长度", 0, 0},
		{"负长度", -1, 0},
		{"负重叠", 100, -1},
		{"重叠等于长度", 100, 100},
		{"重叠大于长度", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.maxSize, tc.overlap)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := New(100, 0)
	assert.NoError(t, err)
}

func TestSplitEmptyInput(t *testing.T) {
	ck, err := New(100, 20)
	require.NoError(t, err)

	assert.Empty(t, ck.Split(""))
	assert.Empty(t, ck.Split("   \n\t  "))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	ck, err := New(100, 20)
	require.NoError(t, err)

	chunks := ck.Split("Hello world. This is short.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello world. This is short.", chunks[0])
}

func TestSplitRespectsMaxSize(t *testing.T) {
	ck, err := New(40, 10)
	require.NoError(t, err)

	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("This is sentence number whatever. ")
	}
	chunks := ck.Split(sb.String())
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 40, "chunk %d 超出最大长度", i)
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestSplitOverlapSeedsNextChunk(t *testing.T) {
	ck, err := New(40, 10)
	require.NoError(t, err)

	s1 := "aaaaaaaaaa aaaaaaaaa."
	s2 := "bbbbbbbbbb bbbbbbbbb."
	chunks := ck.Split(s1 + " " + s2)
	require.Len(t, chunks, 2)
	assert.Equal(t, s1, chunks[0])

	// 第二个片段以前一个片段末尾 10 个字符开头
	prev := []rune(chunks[0])
	seed := string(prev[len(prev)-10:])
	assert.True(t, strings.HasPrefix(chunks[1], seed),
		"chunk %q 未以重叠种子 %q 开头", chunks[1], seed)
	assert.Contains(t, chunks[1], s2)
}

func TestSplitHardSplitsOversizedSentence(t *testing.T) {
	ck, err := New(40, 10)
	require.NoError(t, err)

	// 100 个无空白字符、无终结标点的超长“句子”
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	text := sb.String()

	// 固定窗口长度为 maxSize-overlap=30：100 个字符切成 30/30/30/10
	chunks := ck.Split(text)
	require.Len(t, chunks, 4)
	assert.Equal(t, []int{30, 30, 30, 10}, chunkLengths(chunks))

	// 窗口之间不重叠，直接拼接即还原原文
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitKeepsSeedWhenNextSentenceOverflows(t *testing.T) {
	ck, err := New(20, 5)
	require.NoError(t, err)

	s1 := "aaaaaaaaaaaaaaaaaa."
	s2 := "bbbbbbbbbbbbbbbbbb."
	chunks := ck.Split(s1 + " " + s2)

	// 种子 "aaaa." 加上 s2 超过 maxSize：种子保留，超限片段走硬切
	require.Len(t, chunks, 3)
	assert.Equal(t, s1, chunks[0])
	assert.True(t, strings.HasPrefix(chunks[1], "aaaa."),
		"chunk %q 未保留重叠种子", chunks[1])
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 20, "chunk %d 超出最大长度", i)
	}
	assert.Equal(t, "aaaa. "+s2, chunks[1]+chunks[2])
}

func chunkLengths(chunks []string) []int {
	lengths := make([]int, len(chunks))
	for i, chunk := range chunks {
		lengths[i] = len([]rune(chunk))
	}
	return lengths
}

func TestSplitDoesNotBreakOnInlinePunctuation(t *testing.T) {
	ck, err := New(100, 0)
	require.NoError(t, err)

	// 小数点后没有空白，不应该被当作句子边界
	chunks := ck.Split("Pi is approximately 3.14159 in most uses.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Pi is approximately 3.14159 in most uses.", chunks[0])
}

func TestSplitHandlesCJKSentences(t *testing.T) {
	ck, err := New(20, 5)
	require.NoError(t, err)

	chunks := ck.Split("第一句话。 第二句话。 第三句话。")
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 20)
	}
}

func TestSplitZeroOverlapNoSeeding(t *testing.T) {
	ck, err := New(30, 0)
	require.NoError(t, err)

	s1 := "aaaaaaaaaaaaaaaaaaaa."
	s2 := "bbbbbbbbbbbbbbbbbbbb."
	chunks := ck.Split(s1 + " " + s2)
	require.Len(t, chunks, 2)
	assert.Equal(t, s1, chunks[0])
	assert.Equal(t, s2, chunks[1])
}
