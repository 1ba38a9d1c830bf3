package colloquial

import (
	"fmt"
	"strings"
)

// Correction 表示一处书面语到粤语口语的替换建议。
type Correction struct {
	Written    string `json:"written"`
	Colloquial string `json:"colloquial"`
	Note       string `json:"note,omitempty"`
}

type rule struct {
	written    []string
	colloquial string
	note       string
}

// 多字规则必须排在单字规则之前，匹配后的片段会被遮蔽。
var rules = []rule{
	{written: []string{"為什麼", "为什么"}, colloquial: "點解", note: "問原因"},
	{written: []string{"沒有", "没有"}, colloquial: "冇"},
	{written: []string{"他們", "他们", "她們", "她们"}, colloquial: "佢哋"},
	{written: []string{"我們", "我们"}, colloquial: "我哋"},
	{written: []string{"你們", "你们"}, colloquial: "你哋"},
	{written: []string{"什麼", "什么"}, colloquial: "咩"},
	{written: []string{"怎麼", "怎么"}, colloquial: "點"},
	{written: []string{"這個", "这个"}, colloquial: "呢個"},
	{written: []string{"那個", "那个"}, colloquial: "嗰個"},
	{written: []string{"這裡", "这里", "這裏"}, colloquial: "呢度"},
	{written: []string{"那裡", "那里", "那裏"}, colloquial: "嗰度"},
	{written: []string{"現在", "现在"}, colloquial: "而家"},
	{written: []string{"喜歡", "喜欢"}, colloquial: "鍾意"},
	{written: []string{"東西", "东西"}, colloquial: "嘢"},
	{written: []string{"漂亮"}, colloquial: "靚"},
	{written: []string{"他", "她"}, colloquial: "佢"},
	{written: []string{"是"}, colloquial: "係"},
	{written: []string{"的"}, colloquial: "嘅", note: "所有格"},
	{written: []string{"不"}, colloquial: "唔"},
	{written: []string{"在"}, colloquial: "喺", note: "表示位置"},
	{written: []string{"看"}, colloquial: "睇"},
	{written: []string{"說", "说"}, colloquial: "講"},
	{written: []string{"吃"}, colloquial: "食"},
	{written: []string{"喝"}, colloquial: "飲"},
	{written: []string{"給", "给"}, colloquial: "俾"},
	{written: []string{"了"}, colloquial: "咗", note: "完成體"},
}

// 口语里照用的词，先遮蔽避免误判。
var keepWords = []string{"的士", "不過", "不如", "不錯", "唔係", "係咪", "了解"}

const mask = "\x00"

// Analyze 找出文本中的书面语用词，按规则顺序返回去重后的建议。
func Analyze(text string) []Correction {
	working := strings.TrimSpace(text)
	if working == "" {
		return nil
	}

	for _, word := range keepWords {
		working = strings.ReplaceAll(working, word, mask)
	}

	var out []Correction
	for _, r := range rules {
		for _, written := range r.written {
			if !strings.Contains(working, written) {
				continue
			}
			out = append(out, Correction{Written: written, Colloquial: r.colloquial, Note: r.note})
			working = strings.ReplaceAll(working, written, mask)
		}
	}
	return out
}

// Hint 把建议压缩成一句反馈，最多列出 limit 项。没有建议时返回空串。
func Hint(corrections []Correction, limit int) string {
	if len(corrections) == 0 {
		return ""
	}
	if limit < 1 || limit > len(corrections) {
		limit = len(corrections)
	}

	pairs := make([]string, 0, limit)
	for _, c := range corrections[:limit] {
		pairs = append(pairs, fmt.Sprintf("「%s」→「%s」", c.Written, c.Colloquial))
	}
	return fmt.Sprintf("講得唔錯！想再地道啲，可以試下用口語：%s。", strings.Join(pairs, "、"))
}
