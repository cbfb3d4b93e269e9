package service

import (
	"context"
	"fmt"
	"time"

	"askdocs-go/internal/model"
	"askdocs-go/internal/repository"
	"askdocs-go/pkg/llm"
	"askdocs-go/pkg/log"
)

// dailyPromptFmt 是每日知识条目的生成提示词。
const dailyPromptFmt = "Write a short, self-contained daily knowledge snippet " +
	"about the field %q. Around 150 words, plain text, no preamble."

// DailyService 负责每日知识条目的生成与查询。
type DailyService struct {
	dailyRepo repository.DailyRepository
	client    llm.Client
	fields    []string
}

// NewDailyService 创建每日内容服务。
func NewDailyService(dailyRepo repository.DailyRepository, client llm.Client, fields []string) *DailyService {
	return &DailyService{dailyRepo: dailyRepo, client: client, fields: fields}
}

// GenerateToday 为每个领域各调用一次模型生成内容，按 (日期, 领域) 落库。
// 单个领域失败不阻断其余领域。
func (s *DailyService) GenerateToday(ctx context.Context) ([]model.DailyNugget, error) {
	date := time.Now().Format("2006-01-02")
	var generated []model.DailyNugget
	var lastErr error

	for _, field := range s.fields {
		content, err := s.client.Generate(ctx, []llm.Message{
			{Role: "user", Content: fmt.Sprintf(dailyPromptFmt, field)},
		})
		if err != nil {
			log.Errorf("生成每日内容失败, field: %s, err: %v", field, err)
			lastErr = err
			continue
		}

		nugget := model.DailyNugget{
			Date:    date,
			Field:   field,
			Title:   fmt.Sprintf("%s · %s", field, date),
			Content: content,
		}
		if err := s.dailyRepo.Upsert(&nugget); err != nil {
			log.Errorf("保存每日内容失败, field: %s, err: %v", field, err)
			lastErr = err
			continue
		}
		generated = append(generated, nugget)
	}

	if len(generated) == 0 && lastErr != nil {
		return nil, fmt.Errorf("每日内容生成全部失败: %w", lastErr)
	}
	return generated, nil
}

// GetByDate 返回指定日期的条目，date 为空时取今天。
func (s *DailyService) GetByDate(date string) ([]model.DailyNugget, error) {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	return s.dailyRepo.FindByDate(date)
}

// Archive 返回最近的历史条目。
func (s *DailyService) Archive(limit int) ([]model.DailyNugget, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.dailyRepo.FindArchive(limit)
}
