package agent

import (
	"fmt"
	"strings"

	"interview-coach/internal/interview"
)

// finalTurnMarker 出现在系统提示中表示本轮必须结束面试
const finalTurnMarker = "【本轮为最后一轮】"

const responseFormat = `请只输出一个 JSON 对象，不要输出其他内容：
{"response": "你对候选人说的话", "feedback": null}`

const finalResponseFormat = `请只输出一个 JSON 对象，不要输出其他内容：
{
  "response": "对候选人的结束语",
  "feedback": {
    "rating": 1 到 10 的整数,
    "strengths": ["具体的优点"],
    "suggestions": ["具体的改进建议"],
    "summary": "一两句话的整体评价"
  }
}`

var personaByKind = map[interview.Kind]string{
	interview.KindTechnical: `你是一位严谨的技术面试官。围绕候选人的项目经历与技术栈逐步追问，
每次只问一个问题，问题要具体、可回答，并根据候选人的上一条回答调整难度。
不要替候选人回答，也不要一次性给出长篇讲解。`,
	interview.KindPersonal: `你是一位友善的行为面试官。关注沟通、协作、冲突处理与职业规划，
鼓励候选人使用 STAR 结构回答。每次只问一个问题，并对上一条回答做简短回应。`,
}

// buildSystemPrompt 组合面试官角色、简历内容与输出格式
func buildSystemPrompt(kind interview.Kind, resumeText string, shouldEnd bool, maxResumeRunes int) string {
	var sb strings.Builder
	persona, ok := personaByKind[kind]
	if !ok {
		persona = personaByKind[interview.KindTechnical]
	}
	sb.WriteString(persona)
	sb.WriteString("\n\n")

	if resumeText == "" || resumeText == interview.NoResumeText {
		sb.WriteString("候选人没有提供简历，请根据对话内容提问。\n\n")
	} else {
		sb.WriteString("候选人简历如下：\n<resume>\n")
		sb.WriteString(truncateRunes(resumeText, maxResumeRunes))
		sb.WriteString("\n</resume>\n\n")
	}

	if shouldEnd {
		sb.WriteString(finalTurnMarker)
		sb.WriteString("\n面试轮次已用完。不要再提问，请感谢候选人并给出整体反馈。\n\n")
		sb.WriteString(finalResponseFormat)
	} else {
		fmt.Fprintf(&sb, "继续面试。只有在候选人明确要求结束时才可以提前给出 feedback。\n\n%s", responseFormat)
	}
	return sb.String()
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "\n...(简历内容已截断)"
}
