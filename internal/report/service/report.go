package service

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "reportvault/internal/pkg/errors"
	"reportvault/internal/pkg/response"
	"reportvault/internal/report/biz"
)

// ReportService 报告 HTTP 服务
type ReportService struct {
	uc     *biz.ReportUseCase
	logger *zap.Logger
}

// NewReportService 创建报告服务
func NewReportService(uc *biz.ReportUseCase, logger *zap.Logger) *ReportService {
	return &ReportService{
		uc:     uc,
		logger: logger,
	}
}

// RegisterRoutes 注册路由
func (s *ReportService) RegisterRoutes(r *gin.RouterGroup) {
	reports := r.Group("/reports")
	{
		reports.GET("", s.ListReports)
		reports.POST("", s.CreateReport)
		reports.GET("/:id", s.GetReport)
		reports.PUT("/:id", s.UpdateReport)
		reports.DELETE("/:id", s.DeleteReport)
		reports.GET("/:id/file", s.DownloadFile)
	}
}

// ListReports 列出全部报告（最新在前）
func (s *ReportService) ListReports(c *gin.Context) {
	reports, err := s.uc.ListReports(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}

	items := make([]*ReportResponse, len(reports))
	for i, report := range reports {
		items[i] = toReportResponse(report)
	}

	response.Success(c, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

// GetReport 获取报告详情
func (s *ReportService) GetReport(c *gin.Context) {
	report, err := s.uc.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, toReportResponse(report))
}

// CreateReport 创建报告，multipart 表单可携带一个 "file" 部分
func (s *ReportService) CreateReport(c *gin.Context) {
	var form ReportForm
	if err := c.ShouldBind(&form); err != nil {
		response.BadRequest(c, "title and author are required")
		return
	}

	upload, file, err := s.uploadFromForm(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if file != nil {
		defer file.Close()
	}

	report, err := s.uc.CreateReport(c.Request.Context(), &biz.CreateReportRequest{
		Title:       form.Title,
		Author:      form.Author,
		Description: form.Description,
	}, upload)
	if err != nil {
		s.handleError(c, err)
		return
	}

	s.logger.Info("report created",
		zap.String("report_id", report.ID),
		zap.Bool("has_file", report.Blob != nil))

	response.Created(c, toReportResponse(report))
}

// UpdateReport 更新报告；不带文件部分时原附件保持不变
func (s *ReportService) UpdateReport(c *gin.Context) {
	var form ReportForm
	if err := c.ShouldBind(&form); err != nil {
		response.BadRequest(c, "title and author are required")
		return
	}

	upload, file, err := s.uploadFromForm(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if file != nil {
		defer file.Close()
	}

	report, err := s.uc.UpdateReport(c.Request.Context(), c.Param("id"), &biz.UpdateReportRequest{
		Title:       form.Title,
		Author:      form.Author,
		Description: form.Description,
	}, upload)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, toReportResponse(report))
}

// DeleteReport 删除报告及附件，返回被删除的报告
func (s *ReportService) DeleteReport(c *gin.Context) {
	report, err := s.uc.DeleteReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}

	s.logger.Info("report deleted", zap.String("report_id", report.ID))

	response.Success(c, toReportResponse(report))
}

// DownloadFile 下载报告附件
func (s *ReportService) DownloadFile(c *gin.Context) {
	rc, report, err := s.uc.OpenFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `inline; filename="`+report.Blob.StoredName+`"`)
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, rc); err != nil {
		s.logger.Warn("failed to stream file",
			zap.String("report_id", report.ID),
			zap.Error(err))
	}
}

// uploadFromForm 提取可选的 "file" 部分；没有文件时返回 nil
func (s *ReportService) uploadFromForm(c *gin.Context) (*biz.Upload, multipart.File, error) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, nil
		}
		return nil, nil, errors.New("invalid file part")
	}

	return &biz.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        file,
	}, file, nil
}

// handleError 将领域错误映射为统一响应
func (s *ReportService) handleError(c *gin.Context, err error) {
	appErr := toAppError(err)

	switch {
	case apperrors.IsServerError(appErr.Code):
		s.logger.Error("request failed", zap.Error(err))
	case apperrors.IsClientError(appErr.Code):
		s.logger.Debug("request rejected", zap.Error(err))
	}

	response.HandleError(c, appErr)
}

func toAppError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, biz.ErrReportNotFound):
		return apperrors.New(apperrors.ErrReportNotFound)
	case errors.Is(err, biz.ErrFileNotFound):
		return apperrors.New(apperrors.ErrFileNotFound)
	case errors.Is(err, biz.ErrInvalidFileType):
		return apperrors.New(apperrors.ErrFileInvalidType, err.Error())
	case errors.Is(err, biz.ErrFileTooLarge):
		return apperrors.New(apperrors.ErrFileTooLarge, err.Error())
	case errors.Is(err, biz.ErrTitleRequired), errors.Is(err, biz.ErrAuthorRequired):
		return apperrors.New(apperrors.ErrReportInvalidInput, err.Error())
	default:
		return apperrors.Wrap(err, apperrors.ErrInternalServer)
	}
}
