package interview

import (
	"fmt"
	"strings"
)

const (
	MinRating = 1
	MaxRating = 10

	maxFeedbackItems   = 10
	maxFeedbackItemLen = 500

	// CompletionSummary 生成器结束会话但未给出结构化反馈时使用的兜底文本
	CompletionSummary = "Interview completed successfully"
)

// Feedback 会话结束时附带的反馈。
// 会话上的 nil 指针即 NoFeedback；Rating 为 0 表示没有评分的结束说明。
type Feedback struct {
	Rating      int      `json:"rating,omitempty"`
	Strengths   []string `json:"strengths,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Summary     string   `json:"summary,omitempty"`
}

// CompletionNote 返回兜底反馈
func CompletionNote() *Feedback {
	return &Feedback{Summary: CompletionSummary}
}

// IsAssessment 是否为带评分的评估
func (f *Feedback) IsAssessment() bool {
	return f != nil && f.Rating != 0
}

// Validate 校验生成器返回的反馈，不合法的反馈不能写入会话
func (f *Feedback) Validate() error {
	if f == nil {
		return nil
	}
	if f.Rating < MinRating || f.Rating > MaxRating {
		return fmt.Errorf("rating 必须在 %d-%d 之间, 实际为 %d", MinRating, MaxRating, f.Rating)
	}
	if len(f.Strengths) == 0 && len(f.Suggestions) == 0 {
		return fmt.Errorf("strengths 与 suggestions 不能同时为空")
	}
	if err := validateItems("strengths", f.Strengths); err != nil {
		return err
	}
	if err := validateItems("suggestions", f.Suggestions); err != nil {
		return err
	}
	if len([]rune(f.Summary)) > maxFeedbackItemLen*2 {
		return fmt.Errorf("summary 过长: %d 字符", len([]rune(f.Summary)))
	}
	return nil
}

func validateItems(field string, items []string) error {
	if len(items) > maxFeedbackItems {
		return fmt.Errorf("%s 条目过多: %d (最多 %d)", field, len(items), maxFeedbackItems)
	}
	for i, item := range items {
		if strings.TrimSpace(item) == "" {
			return fmt.Errorf("%s[%d] 为空", field, i)
		}
		if len([]rune(item)) > maxFeedbackItemLen {
			return fmt.Errorf("%s[%d] 过长", field, i)
		}
	}
	return nil
}

// normalized 去掉条目首尾空白
func (f *Feedback) normalized() *Feedback {
	out := f.clone()
	for i := range out.Strengths {
		out.Strengths[i] = strings.TrimSpace(out.Strengths[i])
	}
	for i := range out.Suggestions {
		out.Suggestions[i] = strings.TrimSpace(out.Suggestions[i])
	}
	out.Summary = strings.TrimSpace(out.Summary)
	return &out
}

func (f *Feedback) clone() Feedback {
	c := *f
	c.Strengths = append([]string(nil), f.Strengths...)
	c.Suggestions = append([]string(nil), f.Suggestions...)
	return c
}
