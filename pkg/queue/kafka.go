// Package queue 提供了基于 Kafka 的摄取任务队列。
package queue

import (
	"context"
	"encoding/json"

	"askdocs-go/internal/config"
	"askdocs-go/pkg/log"
	"askdocs-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// TaskProcessor defines the interface for any service that can process an ingestion task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestionTask) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceIngestionTask 发送一个文档摄取任务到 Kafka。
func ProduceIngestionTask(ctx context.Context, task tasks.IngestionTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return producer.WriteMessages(ctx,
		kafka.Message{
			Key:   []byte(task.JobID),
			Value: taskBytes,
		},
	)
}

// StartConsumer 启动 Kafka 消费者，使用有界工作池处理摄取任务。
// 每条消息处理完毕后无条件提交 offset：任务失败由管道记录到任务的进度记录中，
// 不做自动重投（除管道内部受限的一次维度恢复外，失败需调用方整体重试）。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'，工作池大小 %d", cfg.Topic, cfg.Workers)

	// 有界工作池：同时在处理的任务数不超过 workers
	sem := make(chan struct{}, cfg.Workers)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者收到退出信号，停止拉取")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}

		var task tasks.IngestionTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		sem <- struct{}{}
		go func(m kafka.Message, task tasks.IngestionTask) {
			defer func() { <-sem }()

			// 每个任务持有自己的可取消上下文，随消费者整体退出而取消
			jobCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			log.Infof("开始处理摄取任务: JobID=%s, FileName=%s", task.JobID, task.FileName)
			if err := processor.Process(jobCtx, task); err != nil {
				log.Errorf("摄取任务处理失败: JobID=%s, Error: %v", task.JobID, err)
			} else {
				log.Infof("摄取任务处理成功: JobID=%s", task.JobID)
			}

			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}(m, task)
	}
}
