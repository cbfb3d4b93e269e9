package vectorindex

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"askdocs-go/internal/config"
	"askdocs-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ES 是 Index 接口的 Elasticsearch 实现。
// 每个集合对应一个独立的 ES 索引，向量字段使用 dense_vector + cosine 相似度。
type ES struct {
	client *elasticsearch.Client
}

var _ Index = (*ES)(nil)

// NewES 根据配置创建 Elasticsearch 客户端。
func NewES(cfg config.ElasticsearchConfig) (*ES, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Addresses},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, err
	}
	return &ES{client: client}, nil
}

// Ping 检查 ES 是否可达，供健康检查使用。
func (e *ES) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping returned status %s", res.Status())
	}
	return nil
}

// collectionMapping 是集合的索引 mapping，维度由调用方给定。
func collectionMapping(dim int) string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"doc_id": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"text": { "type": "text" },
				"title": { "type": "keyword" },
				"source_path": { "type": "keyword" },
				"checksum": { "type": "keyword" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, dim)
}

// EnsureCollection 幂等创建集合。已存在时校验 dense_vector 维度，不一致返回 ErrDimensionMismatch。
// 两个任务并发 EnsureCollection 同名集合时，后创建者容忍 resource_already_exists 并回退到维度校验。
func (e *ES) EnsureCollection(ctx context.Context, name string, dim int) error {
	res, err := e.client.Indices.Exists([]string{name}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("检查集合是否存在时出错: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return e.checkDimension(ctx, name, dim)
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查集合 '%s' 时收到意外的状态码: %d", name, res.StatusCode)
	}

	createRes, err := e.client.Indices.Create(
		name,
		e.client.Indices.Create.WithContext(ctx),
		e.client.Indices.Create.WithBody(strings.NewReader(collectionMapping(dim))),
	)
	if err != nil {
		return fmt.Errorf("创建集合 '%s' 失败: %w", name, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		body, _ := io.ReadAll(createRes.Body)
		// 并发创建竞态：另一个任务先创建成功，回退到维度校验即可
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return e.checkDimension(ctx, name, dim)
		}
		return fmt.Errorf("创建集合 '%s' 时 Elasticsearch 返回错误: %s", name, string(body))
	}

	log.Infof("[VectorIndex] 集合 '%s' 创建成功, dims=%d", name, dim)
	return nil
}

// checkDimension 读取已有集合的 mapping 并比较 dense_vector 维度。
func (e *ES) checkDimension(ctx context.Context, name string, dim int) error {
	res, err := e.client.Indices.GetMapping(
		e.client.Indices.GetMapping.WithContext(ctx),
		e.client.Indices.GetMapping.WithIndex(name),
	)
	if err != nil {
		return fmt.Errorf("读取集合 '%s' mapping 失败: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("读取集合 '%s' mapping 时 Elasticsearch 返回错误: %s", name, res.String())
	}

	var mapping map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Type string `json:"type"`
				Dims int    `json:"dims"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&mapping); err != nil {
		return fmt.Errorf("解析集合 mapping 失败: %w", err)
	}

	idx, ok := mapping[name]
	if !ok {
		return fmt.Errorf("集合 '%s' 的 mapping 响应中缺少该索引", name)
	}
	vectorField, ok := idx.Mappings.Properties["vector"]
	if !ok {
		return fmt.Errorf("集合 '%s' 缺少 vector 字段", name)
	}
	if vectorField.Dims != dim {
		log.Warnf("[VectorIndex] 集合 '%s' 维度不匹配: 期望 %d, 实际 %d", name, dim, vectorField.Dims)
		return fmt.Errorf("集合 '%s' 期望维度 %d, 实际 %d: %w", name, dim, vectorField.Dims, ErrDimensionMismatch)
	}
	return nil
}

// Upsert 通过 _bulk 接口批量写入记录，同 ID 覆盖。
func (e *ES) Upsert(ctx context.Context, name string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, r := range records {
		meta := map[string]map[string]string{"index": {"_index": name, "_id": r.ID}}
		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		doc := map[string]interface{}{
			"doc_id":      r.Payload.DocID,
			"chunk_index": r.Payload.ChunkIndex,
			"text":        r.Payload.Text,
			"title":       r.Payload.Title,
			"source_path": r.Payload.SourcePath,
			"checksum":    r.Payload.Checksum,
			"vector":      r.Vector,
		}
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		buf.Write(metaBytes)
		buf.WriteByte('\n')
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{
		Body:    &buf,
		Refresh: "true",
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("批量写入集合 '%s' 失败: %w", name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return e.wrapBulkError(name, body, res.Status())
	}

	var bulkRes struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return fmt.Errorf("解析 bulk 响应失败: %w", err)
	}
	if bulkRes.Errors {
		for _, item := range bulkRes.Items {
			for _, op := range item {
				if op.Status >= 300 {
					if isDimensionError(op.Error.Reason) || isDimensionError(op.Error.Type) {
						return fmt.Errorf("集合 '%s' 写入被拒: %s: %w", name, op.Error.Reason, ErrDimensionMismatch)
					}
					return fmt.Errorf("集合 '%s' 部分写入失败: %s", name, op.Error.Reason)
				}
			}
		}
		return fmt.Errorf("集合 '%s' 批量写入存在未知错误", name)
	}
	return nil
}

// wrapBulkError 将 bulk 级错误映射到错误分类，维度类错误识别为 ErrDimensionMismatch。
func (e *ES) wrapBulkError(name string, body []byte, status string) error {
	if isDimensionError(string(body)) {
		return fmt.Errorf("集合 '%s' 批量写入失败 [%s]: %w", name, status, ErrDimensionMismatch)
	}
	return fmt.Errorf("集合 '%s' 批量写入失败 [%s]: %s", name, status, string(body))
}

// isDimensionError 判断 ES 错误文本是否由向量维度不符引起。
func isDimensionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "dims") || strings.Contains(lower, "dimension")
}

// Search 执行 kNN 检索并做确定性排序。
func (e *ES) Search(ctx context.Context, name string, vector []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = 6
	}

	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": k * 10,
		},
		"size": k,
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(name),
		e.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		// 集合尚未创建：按空结果处理
		return nil, nil
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch returned an error: %s", string(body))
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source struct {
					Payload
					Vector []float32 `json:"vector"`
				} `json:"_source"`
				Score float64 `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]SearchResult, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		results = append(results, SearchResult{
			Payload: hit.Source.Payload,
			Score:   hit.Score,
		})
	}
	rankResults(results)
	return results, nil
}

// DropCollection 删除集合。调用方在清理路径上可忽略返回的错误。
func (e *ES) DropCollection(ctx context.Context, name string) error {
	res, err := e.client.Indices.Delete([]string{name}, e.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("删除集合 '%s' 失败: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return errors.New("删除集合时 Elasticsearch 返回错误: " + res.String())
	}
	return nil
}
