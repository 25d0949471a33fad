package constants

// Redis Key 前缀和格式常量
// 除简历文本缓存沿用上传服务约定的 resume:{id} 外，统一使用 app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// InterviewModulePrefix 面试模块
	InterviewModulePrefix = "interview"

	// EntityLock 分布式锁实体
	EntityLock = "lock"

	// KeyResumeText 简历纯文本缓存 (STRING)，与上传服务共享
	// 格式: resume:{resumeID}
	KeyResumeText = "resume:%s"

	// KeyInterviewSessionLock 会话轮次锁 (STRING)
	// 格式: app:interview:lock:{sessionID}
	KeyInterviewSessionLock = AppPrefix + ":" + InterviewModulePrefix + ":" + EntityLock + ":%s"
)
