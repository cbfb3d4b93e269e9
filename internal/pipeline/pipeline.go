// Package pipeline 实现文档摄取的完整流水线：抽取、切分、向量化、建索引。
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"askdocs-go/internal/chunker"
	"askdocs-go/internal/extractor"
	"askdocs-go/internal/model"
	"askdocs-go/internal/progress"
	"askdocs-go/internal/repository"
	"askdocs-go/pkg/embedding"
	"askdocs-go/pkg/log"
	"askdocs-go/pkg/tasks"
	"askdocs-go/pkg/vectorindex"

	"github.com/google/uuid"
)

// FileFetcher 接口负责把待摄取文件落到本地磁盘。
type FileFetcher interface {
	Fetch(ctx context.Context, objectName string) (localPath string, cleanup func(), err error)
}

// Pipeline 将一条摄取任务跑完整个流水线，并沿途上报进度。
type Pipeline struct {
	fetcher   FileFetcher
	extractor extractor.Extractor
	chunker   *chunker.Chunker
	embedder  embedding.Client
	index     vectorindex.Index
	progress  progress.Store
	docRepo   repository.DocumentRepository
	batchSize int
}

// New 创建摄取流水线。
func New(
	fetcher FileFetcher,
	ext extractor.Extractor,
	ck *chunker.Chunker,
	embedder embedding.Client,
	index vectorindex.Index,
	store progress.Store,
	docRepo repository.DocumentRepository,
	batchSize int,
) *Pipeline {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Pipeline{
		fetcher:   fetcher,
		extractor: ext,
		chunker:   ck,
		embedder:  embedder,
		index:     index,
		progress:  store,
		docRepo:   docRepo,
		batchSize: batchSize,
	}
}

// Process 实现队列消费者的任务处理接口。
func (p *Pipeline) Process(ctx context.Context, task tasks.IngestionTask) error {
	_, err := p.Ingest(ctx, task)
	return err
}

// Ingest 执行一条摄取任务。任何阶段失败都会把任务标记为 error 后返回。
func (p *Pipeline) Ingest(ctx context.Context, task tasks.IngestionTask) (*model.Document, error) {
	log.Infof("开始处理摄取任务, job_id: %s, file: %s", task.JobID, task.FileName)

	doc, err := p.run(ctx, task)
	if err != nil {
		log.Errorf("摄取任务失败, job_id: %s, err: %v", task.JobID, err)
		if ferr := p.progress.Fail(ctx, task.JobID, err.Error()); ferr != nil {
			log.Errorf("记录任务失败状态出错, job_id: %s, err: %v", task.JobID, ferr)
		}
		return nil, err
	}

	log.Infof("摄取任务完成, job_id: %s, doc_id: %s", task.JobID, doc.DocID)
	return doc, nil
}

func (p *Pipeline) run(ctx context.Context, task tasks.IngestionTask) (*model.Document, error) {
	// 阶段一：抽取文本
	if err := p.progress.Update(ctx, task.JobID, model.JobUpdate{Stage: model.StageExtract}); err != nil {
		return nil, err
	}
	localPath, cleanup, err := p.fetcher.Fetch(ctx, task.ObjectName)
	if err != nil {
		return nil, fmt.Errorf("下载待摄取文件失败: %w", err)
	}
	defer cleanup()

	checksum, err := fileChecksum(localPath)
	if err != nil {
		return nil, err
	}

	text, err := p.extractor.Extract(localPath)
	if err != nil {
		return nil, err
	}

	// 阶段二：切分
	if err := p.progress.Update(ctx, task.JobID, model.JobUpdate{Stage: model.StageSplit}); err != nil {
		return nil, err
	}
	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, errors.New("文档未抽取到任何文本")
	}

	total := len(chunks)
	if err := p.progress.Update(ctx, task.JobID, model.JobUpdate{
		Stage:       model.StageIndex,
		TotalChunks: &total,
	}); err != nil {
		return nil, err
	}

	docID := task.DocID
	if docID == "" {
		docID = uuid.NewString()
	}

	// 阶段三：向量化并建索引，维度冲突时重建集合重试一次
	if err := p.indexChunks(ctx, task, docID, checksum, chunks); err != nil {
		if !errors.Is(err, vectorindex.ErrDimensionMismatch) {
			return nil, err
		}
		log.Warnf("集合 %s 维度不匹配，重建后重试, job_id: %s", task.Collection, task.JobID)
		if derr := p.index.DropCollection(ctx, task.Collection); derr != nil {
			return nil, fmt.Errorf("重建集合失败: %w", derr)
		}
		recovered := true
		zero := 0
		if perr := p.progress.Update(ctx, task.JobID, model.JobUpdate{
			Ingested:  &zero,
			Recovered: &recovered,
		}); perr != nil {
			return nil, perr
		}
		if err := p.indexChunks(ctx, task, docID, checksum, chunks); err != nil {
			return nil, fmt.Errorf("重建集合后摄取仍然失败: %w", err)
		}
	}

	doc := &model.Document{
		DocID:      docID,
		Title:      task.Title,
		SourcePath: task.ObjectName,
		Checksum:   checksum,
		ChunkCount: total,
		Collection: task.Collection,
	}
	if err := p.docRepo.Create(doc); err != nil {
		return nil, fmt.Errorf("保存文档元数据失败: %w", err)
	}

	if err := p.progress.Complete(ctx, task.JobID); err != nil {
		return nil, err
	}
	return doc, nil
}

// indexChunks 分批向量化并写入向量索引，逐批上报进度。
func (p *Pipeline) indexChunks(ctx context.Context, task tasks.IngestionTask, docID, checksum string, chunks []string) error {
	if err := p.index.EnsureCollection(ctx, task.Collection, p.embedder.Dimension()); err != nil {
		return err
	}

	ingested := 0
	for start := 0; start < len(chunks); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors, err := p.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("向量化失败: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("向量数量不匹配: 期望 %d 实际 %d", len(batch), len(vectors))
		}

		records := make([]vectorindex.Record, 0, len(batch))
		for i, text := range batch {
			records = append(records, vectorindex.Record{
				ID:     uuid.NewString(),
				Vector: embedding.Normalize(vectors[i]),
				Payload: vectorindex.Payload{
					DocID:      docID,
					ChunkIndex: start + i,
					Text:       text,
					Title:      task.Title,
					SourcePath: task.ObjectName,
					Checksum:   checksum,
				},
			})
		}
		if err := p.index.Upsert(ctx, task.Collection, records); err != nil {
			return err
		}

		ingested += len(batch)
		current := ingested
		if err := p.progress.Update(ctx, task.JobID, model.JobUpdate{Ingested: &current}); err != nil {
			return err
		}
	}
	return nil
}

// fileChecksum 计算源文件的 sha256，仅用于展示和审计。
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("读取源文件失败: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("计算文件校验和失败: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
