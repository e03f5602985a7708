package service

import (
	"time"

	"reportvault/internal/report/biz"
)

// Report DTO

// ReportForm 创建/更新报告的 multipart 表单字段（文件部分单独处理）
type ReportForm struct {
	Title       string `form:"title" binding:"required"`
	Author      string `form:"author" binding:"required"`
	Description string `form:"description"`
}

// FileResponse 附件响应
type FileResponse struct {
	StoredName string `json:"stored_name"`
	StoredPath string `json:"stored_path"`
}

// ReportResponse 报告响应
type ReportResponse struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Author      string        `json:"author"`
	Description string        `json:"description"`
	File        *FileResponse `json:"file"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
}

// toReportResponse 领域模型转响应
func toReportResponse(report *biz.Report) *ReportResponse {
	resp := &ReportResponse{
		ID:          report.ID,
		Title:       report.Title,
		Author:      report.Author,
		Description: report.Description,
		CreatedAt:   report.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   report.UpdatedAt.Format(time.RFC3339),
	}
	if report.Blob != nil {
		resp.File = &FileResponse{
			StoredName: report.Blob.StoredName,
			StoredPath: report.Blob.StoredPath,
		}
	}
	return resp
}
