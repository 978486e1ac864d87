package agents

import (
	"fmt"
)

// BuildAnalysisPrompt 构造分析提示词
// 纯函数，相同输入产出相同结果
func BuildAnalysisPrompt(agent *Agent, projectDescription string) string {
	return fmt.Sprintf(`PROJECT DESCRIPTION:
%s

As a %s, analyze this project and provide:

1. DETAILED ANALYSIS: Your professional assessment
2. REQUIREMENTS: 3-5 specific requirements from your domain
3. CODE ARTIFACTS: 2-3 code files you would create
4. CONCERNS: Potential issues or risks
5. NEXT STEPS: Concrete next actions from your perspective

Respond in JSON format:
{
    "analysis": "detailed analysis",
    "requirements": [
        {
            "title": "requirement title",
            "description": "detailed description",
            "priority": "high|medium|low",
            "category": "your domain category",
            "estimated_hours": 8,
            "dependencies": ["other requirements"]
        }
    ],
    "code_artifacts": [
        {
            "filename": "filename.ext",
            "language": "programming language",
            "description": "what this file does",
            "code": "actual code implementation",
            "tests": "test code if applicable",
            "documentation": "documentation/comments"
        }
    ],
    "recommendations": ["recommendation 1", "recommendation 2"],
    "concerns": ["concern 1", "concern 2"],
    "next_steps": ["step 1", "step 2"],
    "code_example": {
        "language": "programming language",
        "code": "short illustrative snippet",
        "description": "what the snippet shows"
    }
}`, projectDescription, agent.Role)
}

// BuildCollaborationPrompt 构造两两协作提示词
// peerAnalysis 为对方分析的 JSON 文本，顺序由调用方给定
func BuildCollaborationPrompt(agent, peer *Agent, peerAnalysis, projectDescription string) string {
	return fmt.Sprintf(`PROJECT: %s

Your colleague %s (%s) has shared:
%s

Please respond with how your %s perspective complements or builds upon their analysis.
Be specific and collaborative. Suggest concrete ways to work together.

Keep response concise (2-3 sentences).`,
		projectDescription, peer.Name, peer.Role, peerAnalysis, agent.Role)
}
