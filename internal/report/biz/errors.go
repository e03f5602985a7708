package biz

import "errors"

// Report 相关错误
var (
	ErrReportNotFound = errors.New("report not found")
	ErrTitleRequired  = errors.New("report title is required")
	ErrAuthorRequired = errors.New("report author is required")
)

// 附件相关错误
var (
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidFileType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file size exceeds limit")
)
