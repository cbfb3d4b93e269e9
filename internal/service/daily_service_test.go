package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"askdocs-go/internal/model"
	"askdocs-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDailyRepo struct {
	saved []model.DailyNugget
}

func (f *fakeDailyRepo) Upsert(nugget *model.DailyNugget) error {
	f.saved = append(f.saved, *nugget)
	return nil
}

func (f *fakeDailyRepo) FindByDate(date string) ([]model.DailyNugget, error) {
	return f.saved, nil
}

func (f *fakeDailyRepo) FindArchive(limit int) ([]model.DailyNugget, error) {
	return f.saved, nil
}

type fakeLLM struct {
	failOn map[string]bool
}

func (f *fakeLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	prompt := messages[len(messages)-1].Content
	for field, fail := range f.failOn {
		if fail && strings.Contains(prompt, field) {
			return "", errors.New("模型不可用")
		}
	}
	return "内容: " + prompt, nil
}

func (f *fakeLLM) StreamGenerate(ctx context.Context, messages []llm.Message, onToken llm.TokenFunc) error {
	return nil
}

func TestGenerateTodaySetsTitlePerField(t *testing.T) {
	repo := &fakeDailyRepo{}
	svc := NewDailyService(repo, &fakeLLM{}, []string{"民法", "刑法"})

	nuggets, err := svc.GenerateToday(context.Background())
	require.NoError(t, err)
	require.Len(t, nuggets, 2)

	date := time.Now().Format("2006-01-02")
	assert.Equal(t, "民法 · "+date, nuggets[0].Title)
	assert.Equal(t, "刑法 · "+date, nuggets[1].Title)
	for _, n := range repo.saved {
		assert.NotEmpty(t, n.Title)
		assert.NotEmpty(t, n.Content)
		assert.Equal(t, date, n.Date)
	}
}

func TestGenerateTodayToleratesPartialFailure(t *testing.T) {
	repo := &fakeDailyRepo{}
	svc := NewDailyService(repo, &fakeLLM{failOn: map[string]bool{"刑法": true}}, []string{"民法", "刑法"})

	nuggets, err := svc.GenerateToday(context.Background())
	require.NoError(t, err)
	require.Len(t, nuggets, 1)
	assert.Equal(t, "民法", nuggets[0].Field)
}
