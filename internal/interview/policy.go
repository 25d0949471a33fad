package interview

// 终止阈值是固定策略，不开放配置
const (
	technicalTurnLimit = 8
	personalTurnLimit  = 6
)

// NoResumeText 没有可用简历文本时传给生成器的占位文本
const NoResumeText = "no resume provided"

// TerminationThreshold 返回该类型面试结束前需要的用户回答数
func TerminationThreshold(kind Kind) int {
	if kind == KindTechnical {
		return technicalTurnLimit
	}
	return personalTurnLimit
}

// ShouldEnd 用户回答数达到阈值即结束
func ShouldEnd(kind Kind, userTurns int) bool {
	return userTurns >= TerminationThreshold(kind)
}

const (
	openingTechnicalWithResume = "Welcome to your technical interview practice session. " +
		"I have gone through your resume and will tailor the questions to the projects and technologies you listed. " +
		"To start, pick one project from your resume that you are proud of and walk me through its architecture and your role in it."

	openingTechnicalNoResume = "Welcome to your technical interview practice session. " +
		"We will cover programming fundamentals, system design and problem solving. " +
		"To start, tell me which languages and technologies you are most comfortable with and describe a recent technical problem you solved."

	openingPersonalWithResume = "Welcome to your personal interview practice session. " +
		"I have read your resume and will ask about your experiences, motivation and how you work with others. " +
		"To start, please introduce yourself and tell me how your background led you to the roles you are applying for."

	openingPersonalNoResume = "Welcome to your personal interview practice session. " +
		"I will ask about your experiences, motivation and how you work with others. " +
		"To start, please introduce yourself and tell me a little about your background and what you are looking for next."
)

// OpeningMessage 选择开场白，不调用生成器
func OpeningMessage(kind Kind, hasResume bool) string {
	switch {
	case kind == KindTechnical && hasResume:
		return openingTechnicalWithResume
	case kind == KindTechnical:
		return openingTechnicalNoResume
	case hasResume:
		return openingPersonalWithResume
	default:
		return openingPersonalNoResume
	}
}
