package agents

import (
	"encoding/json"

	"github.com/devcluster/backend/internal/utils"
	"k8s.io/klog/v2"
)

// ParseAnalysis 解析大模型返回的分析文本
// 先做括号配对截取再严格解码；解码失败时降级为仅含原文的结果，永不报错
func ParseAnalysis(raw string) AnalysisPayload {
	extracted := utils.ExtractJSON(raw)

	var payload AnalysisPayload
	if err := json.Unmarshal([]byte(extracted), &payload); err != nil {
		klog.V(6).Infof("分析结果 JSON 解析失败，降级为原文: %v", err)
		return AnalysisPayload{
			Analysis:        raw,
			Recommendations: []string{},
			Concerns:        []string{"JSON parsing failed"},
			NextSteps:       []string{},
			ParseDegraded:   true,
		}
	}

	// 解析成功但字段缺失时补空切片，调用方无需判空
	if payload.Recommendations == nil {
		payload.Recommendations = []string{}
	}
	if payload.Concerns == nil {
		payload.Concerns = []string{}
	}
	if payload.NextSteps == nil {
		payload.NextSteps = []string{}
	}

	return payload
}
