package models

import (
	"time"

	"gorm.io/datatypes"
)

// InterviewSession 模拟面试会话表
type InterviewSession struct {
	SessionID string         `gorm:"type:char(36);primaryKey"`
	OwnerID   string         `gorm:"type:varchar(64);not null;index:idx_is_owner_created,priority:1"`
	Kind      string         `gorm:"type:varchar(20);not null"`
	ResumeRef string         `gorm:"type:varchar(64)"` // 空串表示未关联简历
	Messages  datatypes.JSON `gorm:"type:json;not null"`
	Status    string         `gorm:"type:varchar(20);not null;default:'active';index:idx_is_status"`
	Feedback  datatypes.JSON `gorm:"type:json"` // NULL 表示没有反馈
	Version   int64          `gorm:"not null;default:1"`
	ClosedAt  *time.Time     `gorm:"type:datetime(6)"`
	CreatedAt time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_is_owner_created,priority:2,sort:desc"`
	UpdatedAt time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (InterviewSession) TableName() string {
	return "interview_sessions"
}

// Resume 简历记录，由上传服务写入，本服务只读
type Resume struct {
	ResumeID         string    `gorm:"type:varchar(64);primaryKey"`
	OwnerID          string    `gorm:"type:varchar(64);not null;index:idx_resumes_owner_uploaded,priority:1"`
	DocumentLocation string    `gorm:"type:varchar(1024);not null"` // 格式: bucket/key
	OriginalFilename string    `gorm:"type:varchar(255)"`
	UploadedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_resumes_owner_uploaded,priority:2,sort:desc"`
}

func (Resume) TableName() string {
	return "resumes"
}
