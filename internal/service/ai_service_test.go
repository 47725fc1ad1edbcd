package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kklimas/pk-schedule-sync/config"
)

func newTestAIService(t *testing.T, url string) AIService {
	t.Helper()
	return NewAIService(&config.AIConfig{
		URL:     url,
		Model:   "pk-llama",
		Timeout: 5 * time.Second,
		Shortcuts: map[string]string{
			"ZTBD": "Zaawansowane Technologie Baz Danych",
			"WK":   "Wojciech Książek",
		},
	}, zap.NewNop())
}

// ollamaReply 把内层载荷包进 Ollama 外层响应
func ollamaReply(t *testing.T, w http.ResponseWriter, inner interface{}) {
	t.Helper()
	raw, err := json.Marshal(inner)
	if err != nil {
		t.Fatalf("序列化内层载荷失败: %v", err)
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"response": string(raw)})
}

func TestAIService_Enrich_ListPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("期望请求 /api/generate，实际=%s", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		if req.Model != "pk-llama" || req.Stream {
			t.Errorf("请求体不符合预期: %+v", req)
		}

		var batch []EnrichItem
		if err := json.Unmarshal([]byte(req.Prompt), &batch); err != nil {
			t.Fatalf("prompt 应为批次 JSON: %v", err)
		}
		out := make([]EnrichResult, len(batch))
		for i, item := range batch {
			out[i] = EnrichResult{ID: item.ID, Subject: strPtr("ZTBD")}
		}
		ollamaReply(t, w, out)
	}))
	defer srv.Close()

	svc := newTestAIService(t, srv.URL)
	results := svc.Enrich(context.Background(), []EnrichItem{
		{ID: "a", RawText: "ZTBD wyklad WK"},
		{ID: "b", RawText: "OE lab DK"},
	})

	if len(results) != 2 {
		t.Fatalf("期望 2 条结果，实际=%d", len(results))
	}
	// 缩写整值展开
	if results[0].Subject == nil || *results[0].Subject != "Zaawansowane Technologie Baz Danych" {
		t.Errorf("期望缩写展开为全称，实际=%v", results[0].Subject)
	}
}

func TestAIService_Enrich_ObjectWrappedList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ollamaReply(t, w, map[string]interface{}{
			"results": []EnrichResult{
				{ID: "a", Teacher: strPtr("WK")},
			},
		})
	}))
	defer srv.Close()

	svc := newTestAIService(t, srv.URL)
	results := svc.Enrich(context.Background(), []EnrichItem{{ID: "a", RawText: "ZTBD wyklad WK"}})

	if len(results) != 1 {
		t.Fatalf("包在对象字段里的列表应被识别，实际=%d", len(results))
	}
	if results[0].Teacher == nil || *results[0].Teacher != "Wojciech Książek" {
		t.Errorf("期望教师缩写展开，实际=%v", results[0].Teacher)
	}
}

func TestAIService_Enrich_SingleObjectPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ollamaReply(t, w, EnrichResult{ID: "a", Type: strPtr("wyklad")})
	}))
	defer srv.Close()

	svc := newTestAIService(t, srv.URL)
	results := svc.Enrich(context.Background(), []EnrichItem{{ID: "a", RawText: "ZTBD wyklad"}})

	if len(results) != 1 {
		t.Fatalf("单对象载荷应视为单条结果，实际=%d", len(results))
	}
	if results[0].Type == nil || *results[0].Type != "wyklad" {
		t.Errorf("期望类型 wyklad，实际=%v", results[0].Type)
	}
}

func TestAIService_Enrich_BatchFailureDoesNotAbort(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 第一批返回 500，第二批正常
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		var batch []EnrichItem
		_ = json.Unmarshal([]byte(req.Prompt), &batch)
		out := make([]EnrichResult, len(batch))
		for i, item := range batch {
			out[i] = EnrichResult{ID: item.ID}
		}
		ollamaReply(t, w, out)
	}))
	defer srv.Close()

	svc := newTestAIService(t, srv.URL)
	// 4 条输入 → 批大小 3 → 两个批次
	items := []EnrichItem{
		{ID: "a", RawText: "x"}, {ID: "b", RawText: "x"},
		{ID: "c", RawText: "x"}, {ID: "d", RawText: "x"},
	}
	results := svc.Enrich(context.Background(), items)

	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("期望发起 2 个批次请求，实际=%d", calls)
	}
	if len(results) != 1 {
		t.Fatalf("失败批次应被跳过，仅第二批 1 条，实际=%d", len(results))
	}
	if results[0].ID != "d" {
		t.Errorf("期望第二批的条目 d，实际=%s", results[0].ID)
	}
}

func TestAIService_Enrich_MalformedInnerJSONSkipsBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "nie jestem JSONem"})
	}))
	defer srv.Close()

	svc := newTestAIService(t, srv.URL)
	results := svc.Enrich(context.Background(), []EnrichItem{{ID: "a", RawText: "x"}})

	if len(results) != 0 {
		t.Errorf("畸形内层响应应跳过整批，实际=%d", len(results))
	}
}

func TestAIService_Enrich_DisabledWithoutURL(t *testing.T) {
	svc := NewAIService(&config.AIConfig{}, zap.NewNop())
	results := svc.Enrich(context.Background(), []EnrichItem{{ID: "a", RawText: "x"}})
	if results != nil {
		t.Errorf("未配置 URL 时应直接返回 nil，实际=%v", results)
	}
}

func TestAIService_ExpandShortcuts_ExactValueOnly(t *testing.T) {
	svc := newTestAIService(t, "http://localhost:11434").(*aiService)

	res := EnrichResult{
		Subject: strPtr("ZTBD"),
		Teacher: strPtr("dr WK"), // 非整值匹配，不展开
	}
	svc.expandShortcuts(&res)

	if *res.Subject != "Zaawansowane Technologie Baz Danych" {
		t.Errorf("整值匹配应展开，实际=%s", *res.Subject)
	}
	if *res.Teacher != "dr WK" {
		t.Errorf("子串不应展开，实际=%s", *res.Teacher)
	}
	if res.Room != nil {
		t.Errorf("nil 字段应保持 nil")
	}
}
