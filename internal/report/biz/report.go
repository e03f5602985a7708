package biz

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reportvault/internal/pkg/logger"
)

// BlobRef 报告附件在 blob 存储中的引用
type BlobRef struct {
	StoredName string
	StoredPath string
}

// Report 报告模型
type Report struct {
	ID          string
	Title       string
	Author      string
	Description string
	Blob        *BlobRef // nil 表示无附件
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReportRepo 报告仓储接口
type ReportRepo interface {
	Create(ctx context.Context, report *Report) error
	GetByID(ctx context.Context, id string) (*Report, error)
	List(ctx context.Context) ([]*Report, error)
	Update(ctx context.Context, report *Report) error
	// Delete 删除并返回删除前的状态（调用方需要旧的 BlobRef 做清理）
	Delete(ctx context.Context, id string) (*Report, error)
}

// BlobStore 附件存储接口（本地磁盘实现见 data 层）
type BlobStore interface {
	Put(ctx context.Context, r io.Reader, originalName string) (*BlobRef, error)
	// Remove 幂等删除：对象不存在不视为错误
	Remove(ctx context.Context, ref *BlobRef) error
	Exists(ctx context.Context, ref *BlobRef) bool
	Open(ctx context.Context, ref *BlobRef) (io.ReadCloser, error)
}

// CreateReportRequest 创建报告请求
type CreateReportRequest struct {
	Title       string
	Author      string
	Description string
}

// UpdateReportRequest 更新报告请求
type UpdateReportRequest struct {
	Title       string
	Author      string
	Description string
}

// ReportUseCase 报告用例：协调仓储与 blob 存储，保证记录与文件的一致性
type ReportUseCase struct {
	repo   ReportRepo
	blobs  BlobStore
	policy UploadPolicy
	logger *logger.Logger
}

// NewReportUseCase 创建报告用例
func NewReportUseCase(repo ReportRepo, blobs BlobStore, policy UploadPolicy, log *logger.Logger) *ReportUseCase {
	return &ReportUseCase{
		repo:   repo,
		blobs:  blobs,
		policy: policy,
		logger: log,
	}
}

func validateFields(title, author string) error {
	if title == "" {
		return ErrTitleRequired
	}
	if author == "" {
		return ErrAuthorRequired
	}
	return nil
}

// CreateReport 创建报告（可选附件）
//
// 附件先校验、再落盘、最后写库。写库失败时删除刚写入的文件，
// 保证不会留下无主 blob，也不会产生指向不存在文件的记录。
func (uc *ReportUseCase) CreateReport(ctx context.Context, req *CreateReportRequest, upload *Upload) (*Report, error) {
	if err := validateFields(req.Title, req.Author); err != nil {
		return nil, err
	}

	var ref *BlobRef
	if upload != nil {
		if err := uc.policy.Validate(upload.ContentType, upload.Size); err != nil {
			return nil, err
		}

		var err error
		ref, err = uc.blobs.Put(ctx, upload.Data, upload.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to store file: %w", err)
		}
	}

	now := time.Now()
	report := &Report{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		Blob:        ref,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, report); err != nil {
		if ref != nil {
			// 回滚刚写入的文件
			if rmErr := uc.blobs.Remove(ctx, ref); rmErr != nil {
				uc.logger.Error("failed to clean up file after create failure",
					zap.String("stored_name", ref.StoredName),
					zap.Error(rmErr))
			}
		}
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	return report, nil
}

// UpdateReport 更新报告（可选新附件）
//
// 不带附件时仅更新标量字段，原有附件保持不变。带附件时先写入新文件、
// 提交指向新文件的记录，然后再删除旧文件（commit-before-cleanup）：
// 中途崩溃最多留下一个孤儿旧文件，记录始终指向存在的 blob。
func (uc *ReportUseCase) UpdateReport(ctx context.Context, id string, req *UpdateReportRequest, upload *Upload) (*Report, error) {
	if err := validateFields(req.Title, req.Author); err != nil {
		return nil, err
	}

	report, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var newRef *BlobRef
	if upload != nil {
		if err := uc.policy.Validate(upload.ContentType, upload.Size); err != nil {
			return nil, err
		}

		newRef, err = uc.blobs.Put(ctx, upload.Data, upload.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to store file: %w", err)
		}
	}

	oldRef := report.Blob

	report.Title = req.Title
	report.Author = req.Author
	report.Description = req.Description
	report.UpdatedAt = time.Now()
	if newRef != nil {
		report.Blob = newRef
	}

	if err := uc.repo.Update(ctx, report); err != nil {
		if newRef != nil {
			// 提交失败：丢弃新文件，旧文件仍然有效
			if rmErr := uc.blobs.Remove(ctx, newRef); rmErr != nil {
				uc.logger.Error("failed to clean up file after update failure",
					zap.String("stored_name", newRef.StoredName),
					zap.Error(rmErr))
			}
		}
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	// 记录已指向新文件，旧文件可以安全删除；失败只记日志
	if newRef != nil && oldRef != nil {
		if rmErr := uc.blobs.Remove(ctx, oldRef); rmErr != nil {
			uc.logger.Warn("failed to remove replaced file",
				zap.String("report_id", id),
				zap.String("stored_name", oldRef.StoredName),
				zap.Error(rmErr))
		}
	}

	return report, nil
}

// DeleteReport 删除报告及其附件
//
// 先删记录，成功后再删文件。文件删除失败只记日志：记录已经不存在，
// 残留文件是清理问题而非正确性问题。
func (uc *ReportUseCase) DeleteReport(ctx context.Context, id string) (*Report, error) {
	report, err := uc.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	if report.Blob != nil {
		if rmErr := uc.blobs.Remove(ctx, report.Blob); rmErr != nil {
			uc.logger.Warn("failed to remove file of deleted report",
				zap.String("report_id", id),
				zap.String("stored_name", report.Blob.StoredName),
				zap.Error(rmErr))
		}
	}

	return report, nil
}

// GetReport 获取报告详情
func (uc *ReportUseCase) GetReport(ctx context.Context, id string) (*Report, error) {
	return uc.repo.GetByID(ctx, id)
}

// ListReports 按创建时间倒序列出全部报告
func (uc *ReportUseCase) ListReports(ctx context.Context) ([]*Report, error) {
	return uc.repo.List(ctx)
}

// OpenFile 打开报告附件用于下载
func (uc *ReportUseCase) OpenFile(ctx context.Context, id string) (io.ReadCloser, *Report, error) {
	report, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if report.Blob == nil || !uc.blobs.Exists(ctx, report.Blob) {
		return nil, nil, ErrFileNotFound
	}

	rc, err := uc.blobs.Open(ctx, report.Blob)
	if err != nil {
		return nil, nil, err
	}

	return rc, report, nil
}
