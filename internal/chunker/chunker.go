// Package chunker 负责将长文本切分为带重叠的句子感知片段。
package chunker

import (
	"errors"
	"strings"
	"unicode"
)

// ErrInvalidConfig 表示切分参数非法。
var ErrInvalidConfig = errors.New("切分参数非法")

// Chunker 按照最大长度与重叠长度切分文本。
type Chunker struct {
	maxSize int
	overlap int
}

// New 创建切分器。overlap 必须小于 maxSize，否则永远无法推进。
func New(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 || overlap < 0 || overlap >= maxSize {
		return nil, ErrInvalidConfig
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Split 将文本切分为若干片段：
// 先按句子边界贪心打包，片段关闭后以其末尾 overlap 个字符作为下一片段的种子；
// 打包后仍超过 maxSize 的片段（超长句子，或种子加句子超限）
// 再按长度为 maxSize-overlap 的固定窗口硬切。
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}
	}

	sentences := splitSentences(text)
	var packed []string
	var current []rune

	flush := func() {
		chunk := strings.TrimSpace(string(current))
		if chunk != "" {
			packed = append(packed, chunk)
		}
		// 以末尾的重叠窗口作为下一片段的种子
		if c.overlap == 0 {
			current = nil
		} else if len(current) > c.overlap {
			current = append([]rune{}, current[len(current)-c.overlap:]...)
		} else {
			current = append([]rune{}, current...)
		}
	}

	for _, sentence := range sentences {
		runes := []rune(sentence)
		if len(current) > 0 && len(current)+1+len(runes) > c.maxSize {
			flush()
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		// 种子加句子仍可能超过 maxSize，交给下面的硬切处理
		current = append(current, runes...)
	}
	if chunk := strings.TrimSpace(string(current)); chunk != "" {
		packed = append(packed, chunk)
	}

	// 硬切：超限片段按固定窗口切开，窗口之间不重叠
	step := c.maxSize - c.overlap
	var chunks []string
	for _, chunk := range packed {
		runes := []rune(chunk)
		if len(runes) <= c.maxSize {
			chunks = append(chunks, chunk)
			continue
		}
		for start := 0; start < len(runes); start += step {
			end := start + step
			if end > len(runes) {
				end = len(runes)
			}
			piece := strings.TrimSpace(string(runes[start:end]))
			if piece != "" {
				chunks = append(chunks, piece)
			}
		}
	}
	return chunks
}

// splitSentences 在终结标点后跟空白处断句。
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		// 吞掉连续的终结标点，如 "?!" 或 "..."
		j := i
		for j+1 < len(runes) && isTerminal(runes[j+1]) {
			j++
		}
		if j+1 < len(runes) && !unicode.IsSpace(runes[j+1]) {
			i = j
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : j+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		i = j
		start = j + 1
	}
	if start < len(runes) {
		tail := strings.TrimSpace(string(runes[start:]))
		if tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
